// Copyright 2024 ChainSafe Systems (ON)
// SPDX-License-Identifier: LGPL-3.0-only

// Package scale implements the SCALE codec used by the relay chain for hashing,
// signing payloads and storage.
package scale

import (
	"fmt"
	"reflect"
	"sort"
	"strings"
	"sync"
)

// package level cache for fieldScaleIndicies
var cache = &fieldScaleIndicesCache{
	cache: make(map[reflect.Type]fieldScaleIndices),
}

// fieldScaleIndex is used to map field index to scale index
type fieldScaleIndex struct {
	fieldIndex int
	scaleIndex *string
}
type fieldScaleIndices []fieldScaleIndex

// fieldScaleIndicesCache stores the order of the fields per struct
type fieldScaleIndicesCache struct {
	cache map[reflect.Type]fieldScaleIndices
	sync.RWMutex
}

// fieldScaleIndices returns the exported fields of t ordered by their `scale` tag, then by
// declaration order. Fields tagged `scale:"-"` are skipped.
func (fsic *fieldScaleIndicesCache) fieldScaleIndices(t reflect.Type) (indices fieldScaleIndices, err error) {
	if t.Kind() != reflect.Struct {
		return nil, fmt.Errorf("%w: %s is not a struct", ErrUnsupportedType, t)
	}

	fsic.RLock()
	indices, ok := fsic.cache[t]
	fsic.RUnlock()
	if ok {
		return indices, nil
	}

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if !field.IsExported() {
			continue
		}
		tag := strings.TrimSpace(field.Tag.Get("scale"))
		switch tag {
		case "":
			indices = append(indices, fieldScaleIndex{
				fieldIndex: i,
			})
		case "-":
			continue
		default:
			tag := tag
			indices = append(indices, fieldScaleIndex{
				fieldIndex: i,
				scaleIndex: &tag,
			})
		}
	}

	sort.SliceStable(indices, func(i, j int) bool {
		switch {
		case indices[i].scaleIndex == nil && indices[j].scaleIndex != nil:
			return false
		case indices[i].scaleIndex != nil && indices[j].scaleIndex == nil:
			return true
		case indices[i].scaleIndex == nil && indices[j].scaleIndex == nil:
			return indices[i].fieldIndex < indices[j].fieldIndex
		default:
			return *indices[i].scaleIndex < *indices[j].scaleIndex
		}
	})

	fsic.Lock()
	fsic.cache[t] = indices
	fsic.Unlock()
	return indices, nil
}

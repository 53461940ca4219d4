// Package types holds generated API types for media entries and upload tokens, with the
// service actions that use them.
package types

import (
	"time"

	"mediaclient/internal/object"
)

// Discriminators
const (
	TypeBaseEntry                 = "KalturaBaseEntry"
	TypeMediaEntry                = "KalturaMediaEntry"
	TypeListResponse              = "KalturaListResponse"
	TypeMediaListResponse         = "KalturaMediaListResponse"
	TypeFilterPager               = "KalturaFilterPager"
	TypeMediaEntryFilter          = "KalturaMediaEntryFilter"
	TypeUploadToken               = "KalturaUploadToken"
	TypeContentResource           = "KalturaContentResource"
	TypeUploadedFileTokenResource = "KalturaUploadedFileTokenResource"
)

func init() {
	object.Register(TypeBaseEntry, func() object.Object { return &BaseEntry{} })
	object.Register(TypeMediaEntry, func() object.Object { return &MediaEntry{} })
	object.Register(TypeListResponse, func() object.Object { return &ListResponse{} })
	object.Register(TypeMediaListResponse, func() object.Object { return &MediaListResponse{} })
	object.Register(TypeFilterPager, func() object.Object { return &FilterPager{} })
	object.Register(TypeMediaEntryFilter, func() object.Object { return &MediaEntryFilter{} })
	object.Register(TypeUploadToken, func() object.Object { return &UploadToken{} })
	object.Register(TypeContentResource, func() object.Object { return &ContentResource{} })
	object.Register(TypeUploadedFileTokenResource, func() object.Object { return &UploadedFileTokenResource{} })
}

func stringField(b *object.Base, name string) (string, bool) {
	v, ok := b.Get(name)
	s, isString := v.(string)
	return s, ok && isString
}

func intField(b *object.Base, name string) (int64, bool) {
	v, ok := b.Get(name)
	switch n := v.(type) {
	case int64:
		return n, ok
	case int:
		return int64(n), ok
	case float64:
		return int64(n), ok
	}
	return 0, false
}

func timeField(b *object.Base, name string) (time.Time, bool) {
	v, ok := b.Get(name)
	t, isTime := v.(time.Time)
	return t, ok && isTime
}

func objectsField[T object.Object](b *object.Base, name string) []T {
	v, _ := b.Get(name)
	items, _ := v.([]object.Object)
	out := make([]T, 0, len(items))
	for _, item := range items {
		if typed, ok := item.(T); ok {
			out = append(out, typed)
		}
	}
	return out
}

// ListResponse is the base of paged list results.
type ListResponse struct{ object.Base }

var listResponseMetadata = object.NewMetadata(object.BaseMetadata(),
	object.Property{Name: object.PropObjectType, Type: object.TypeConstant, Default: TypeListResponse},
	object.Property{Name: "totalCount", Type: object.TypeNumber, ReadOnly: true},
)

func (*ListResponse) Metadata() *object.Metadata { return listResponseMetadata }

// TotalCount is the number of matches across all pages.
func (l *ListResponse) TotalCount() int64 {
	n, _ := intField(&l.Base, "totalCount")
	return n
}

// FilterPager selects one page of a list.
type FilterPager struct{ object.Base }

var filterPagerMetadata = object.NewMetadata(object.BaseMetadata(),
	object.Property{Name: object.PropObjectType, Type: object.TypeConstant, Default: TypeFilterPager},
	object.Property{Name: "pageSize", Type: object.TypeNumber},
	object.Property{Name: "pageIndex", Type: object.TypeNumber},
)

func (*FilterPager) Metadata() *object.Metadata { return filterPagerMetadata }

// NewFilterPager returns a pager for the one-based page index.
func NewFilterPager(pageSize, pageIndex int) *FilterPager {
	p := &FilterPager{}
	p.Set("pageSize", pageSize)
	p.Set("pageIndex", pageIndex)
	return p
}

package types

import (
	"time"

	"mediaclient/internal/object"
)

// BaseEntry is the common part of every entry.
type BaseEntry struct{ object.Base }

var baseEntryMetadata = object.NewMetadata(object.BaseMetadata(),
	object.Property{Name: object.PropObjectType, Type: object.TypeConstant, Default: TypeBaseEntry},
	object.Property{Name: "id", Type: object.TypeString, ReadOnly: true},
	object.Property{Name: "name", Type: object.TypeString},
	object.Property{Name: "description", Type: object.TypeString},
	object.Property{Name: "partnerId", Type: object.TypeNumber, ReadOnly: true},
	object.Property{Name: "userId", Type: object.TypeString},
	object.Property{Name: "tags", Type: object.TypeString},
	object.Property{Name: "referenceId", Type: object.TypeString},
	object.Property{Name: "status", Type: object.TypeEnumString, ReadOnly: true},
	object.Property{Name: "createdAt", Type: object.TypeDate, ReadOnly: true},
	object.Property{Name: "updatedAt", Type: object.TypeDate, ReadOnly: true},
)

func (*BaseEntry) Metadata() *object.Metadata { return baseEntryMetadata }

// MediaEntry is a video, audio or image entry.
type MediaEntry struct{ BaseEntry }

var mediaEntryMetadata = object.NewMetadata(baseEntryMetadata,
	object.Property{Name: object.PropObjectType, Type: object.TypeConstant, Default: TypeMediaEntry},
	object.Property{Name: "mediaType", Type: object.TypeEnumNumber},
	object.Property{Name: "duration", Type: object.TypeNumber, ReadOnly: true},
	object.Property{Name: "dataUrl", Type: object.TypeString, ReadOnly: true},
)

func (*MediaEntry) Metadata() *object.Metadata { return mediaEntryMetadata }

// NewMediaEntry returns an entry ready to be added.
func NewMediaEntry(name string, mediaType MediaType) *MediaEntry {
	e := &MediaEntry{}
	e.SetName(name)
	e.SetMediaType(mediaType)
	return e
}

// ID returns the entry id assigned by the server.
func (e *BaseEntry) ID() (string, bool) { return stringField(&e.Base, "id") }

// Name returns the entry name.
func (e *BaseEntry) Name() (string, bool) { return stringField(&e.Base, "name") }

// SetName sets the entry name.
func (e *BaseEntry) SetName(name string) { e.Set("name", name) }

// Description returns the entry description.
func (e *BaseEntry) Description() (string, bool) { return stringField(&e.Base, "description") }

// SetDescription sets the description.
func (e *BaseEntry) SetDescription(d string) { e.Set("description", d) }

// ClearDescription removes the description on the server.
func (e *BaseEntry) ClearDescription() { e.SetNull("description") }

// Tags returns the comma separated tags.
func (e *BaseEntry) Tags() (string, bool) { return stringField(&e.Base, "tags") }

// SetTags sets the comma separated tags.
func (e *BaseEntry) SetTags(tags string) { e.Set("tags", tags) }

// SetReferenceID sets the caller's own id for the entry.
func (e *BaseEntry) SetReferenceID(id string) { e.Set("referenceId", id) }

// PartnerID returns the owning partner.
func (e *BaseEntry) PartnerID() (int64, bool) { return intField(&e.Base, "partnerId") }

// Status returns the processing state.
func (e *BaseEntry) Status() (EntryStatus, bool) {
	s, ok := stringField(&e.Base, "status")
	return EntryStatus(s), ok
}

// CreatedAt returns the creation time.
func (e *BaseEntry) CreatedAt() (time.Time, bool) { return timeField(&e.Base, "createdAt") }

// UpdatedAt returns the last update time.
func (e *BaseEntry) UpdatedAt() (time.Time, bool) { return timeField(&e.Base, "updatedAt") }

// MediaType returns the kind of media.
func (e *MediaEntry) MediaType() (MediaType, bool) {
	n, ok := intField(&e.Base, "mediaType")
	return MediaType(n), ok
}

// SetMediaType sets the kind of media.
func (e *MediaEntry) SetMediaType(t MediaType) { e.Set("mediaType", t) }

// Duration returns the duration in seconds.
func (e *MediaEntry) Duration() (int64, bool) { return intField(&e.Base, "duration") }

// DataURL returns the download URL of the source.
func (e *MediaEntry) DataURL() (string, bool) { return stringField(&e.Base, "dataUrl") }

// MediaEntryFilter narrows media lists.
type MediaEntryFilter struct{ object.Base }

var mediaEntryFilterMetadata = object.NewMetadata(object.BaseMetadata(),
	object.Property{Name: object.PropObjectType, Type: object.TypeConstant, Default: TypeMediaEntryFilter},
	object.Property{Name: "orderBy", Type: object.TypeEnumString},
	object.Property{Name: "idIn", Type: object.TypeString},
	object.Property{Name: "nameLike", Type: object.TypeString},
	object.Property{Name: "statusIn", Type: object.TypeString},
	object.Property{Name: "mediaTypeEqual", Type: object.TypeEnumNumber},
	object.Property{Name: "createdAtGreaterThanOrEqual", Type: object.TypeDate},
)

func (*MediaEntryFilter) Metadata() *object.Metadata { return mediaEntryFilterMetadata }

// SetOrderBy sets the sort order.
func (f *MediaEntryFilter) SetOrderBy(o MediaEntryOrderBy) { f.Set("orderBy", o) }

// SetIDIn matches any of the comma separated ids.
func (f *MediaEntryFilter) SetIDIn(ids string) { f.Set("idIn", ids) }

// SetNameLike matches names containing s.
func (f *MediaEntryFilter) SetNameLike(s string) { f.Set("nameLike", s) }

// SetMediaTypeEqual matches one media type.
func (f *MediaEntryFilter) SetMediaTypeEqual(t MediaType) { f.Set("mediaTypeEqual", t) }

// SetCreatedAtGreaterThanOrEqual matches entries created at or after t.
func (f *MediaEntryFilter) SetCreatedAtGreaterThanOrEqual(t time.Time) {
	f.Set("createdAtGreaterThanOrEqual", t)
}

// MediaListResponse is one page of media entries.
type MediaListResponse struct{ ListResponse }

var mediaListResponseMetadata = object.NewMetadata(listResponseMetadata,
	object.Property{Name: object.PropObjectType, Type: object.TypeConstant, Default: TypeMediaListResponse},
	object.Property{Name: "objects", Type: object.TypeArray, SubType: TypeMediaEntry, ReadOnly: true},
)

func (*MediaListResponse) Metadata() *object.Metadata { return mediaListResponseMetadata }

// Objects returns the entries of the page.
func (l *MediaListResponse) Objects() []*MediaEntry {
	return objectsField[*MediaEntry](&l.Base, "objects")
}

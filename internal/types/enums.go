package types

// EntryStatus is the processing state of an entry.
type EntryStatus string

const (
	EntryStatusErrorImporting  EntryStatus = "-2"
	EntryStatusErrorConverting EntryStatus = "-1"
	EntryStatusImport          EntryStatus = "0"
	EntryStatusPreconvert      EntryStatus = "1"
	EntryStatusReady           EntryStatus = "2"
	EntryStatusDeleted         EntryStatus = "3"
	EntryStatusPending         EntryStatus = "4"
	EntryStatusModerate        EntryStatus = "5"
	EntryStatusBlocked         EntryStatus = "6"
	EntryStatusNoContent       EntryStatus = "7"
)

// MediaType is the kind of media an entry holds.
type MediaType int64

const (
	MediaTypeVideo MediaType = 1
	MediaTypeImage MediaType = 2
	MediaTypeAudio MediaType = 5
)

// UploadTokenStatus is the state of an upload token.
type UploadTokenStatus int64

const (
	UploadTokenStatusPending       UploadTokenStatus = 0
	UploadTokenStatusPartialUpload UploadTokenStatus = 1
	UploadTokenStatusFullUpload    UploadTokenStatus = 2
	UploadTokenStatusClosed        UploadTokenStatus = 3
	UploadTokenStatusTimedOut      UploadTokenStatus = 4
	UploadTokenStatusDeleted       UploadTokenStatus = 5
)

// MediaEntryOrderBy sorts media lists.
type MediaEntryOrderBy string

const (
	MediaEntryOrderByCreatedAtAsc  MediaEntryOrderBy = "+createdAt"
	MediaEntryOrderByCreatedAtDesc MediaEntryOrderBy = "-createdAt"
	MediaEntryOrderByNameAsc       MediaEntryOrderBy = "+name"
)

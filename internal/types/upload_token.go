package types

import (
	"time"

	"mediaclient/internal/object"
)

// UploadToken tracks a file uploaded in one or more transfers.
type UploadToken struct{ object.Base }

var uploadTokenMetadata = object.NewMetadata(object.BaseMetadata(),
	object.Property{Name: object.PropObjectType, Type: object.TypeConstant, Default: TypeUploadToken},
	object.Property{Name: "id", Type: object.TypeString, ReadOnly: true},
	object.Property{Name: "partnerId", Type: object.TypeNumber, ReadOnly: true},
	object.Property{Name: "userId", Type: object.TypeString, ReadOnly: true},
	object.Property{Name: "status", Type: object.TypeEnumNumber, ReadOnly: true},
	object.Property{Name: "fileName", Type: object.TypeString},
	object.Property{Name: "fileSize", Type: object.TypeNumber},
	object.Property{Name: "uploadedFileSize", Type: object.TypeNumber, ReadOnly: true},
	object.Property{Name: "createdAt", Type: object.TypeDate, ReadOnly: true},
	object.Property{Name: "updatedAt", Type: object.TypeDate, ReadOnly: true},
	object.Property{Name: "autoFinalize", Type: object.TypeBool},
)

func (*UploadToken) Metadata() *object.Metadata { return uploadTokenMetadata }

// NewUploadToken declares the file the token will receive.
func NewUploadToken(fileName string, fileSize int64) *UploadToken {
	t := &UploadToken{}
	t.Set("fileName", fileName)
	t.Set("fileSize", fileSize)
	return t
}

// ID returns the token id.
func (t *UploadToken) ID() (string, bool) { return stringField(&t.Base, "id") }

// Status returns the token state.
func (t *UploadToken) Status() (UploadTokenStatus, bool) {
	n, ok := intField(&t.Base, "status")
	return UploadTokenStatus(n), ok
}

// FileName returns the declared file name.
func (t *UploadToken) FileName() (string, bool) { return stringField(&t.Base, "fileName") }

// FileSize returns the declared file size.
func (t *UploadToken) FileSize() (int64, bool) { return intField(&t.Base, "fileSize") }

// UploadedFileSize returns how many bytes the server holds.
func (t *UploadToken) UploadedFileSize() (int64, bool) { return intField(&t.Base, "uploadedFileSize") }

// CreatedAt returns the creation time.
func (t *UploadToken) CreatedAt() (time.Time, bool) { return timeField(&t.Base, "createdAt") }

// SetAutoFinalize closes the token as soon as fileSize bytes arrived.
func (t *UploadToken) SetAutoFinalize(v bool) { t.Set("autoFinalize", v) }

// ContentResource is the source of an entry's content.
type ContentResource struct{ object.Base }

var contentResourceMetadata = object.NewMetadata(object.BaseMetadata(),
	object.Property{Name: object.PropObjectType, Type: object.TypeConstant, Default: TypeContentResource},
)

func (*ContentResource) Metadata() *object.Metadata { return contentResourceMetadata }

// UploadedFileTokenResource uses the file of an upload token as content.
type UploadedFileTokenResource struct{ ContentResource }

var uploadedFileTokenResourceMetadata = object.NewMetadata(contentResourceMetadata,
	object.Property{Name: object.PropObjectType, Type: object.TypeConstant, Default: TypeUploadedFileTokenResource},
	object.Property{Name: "token", Type: object.TypeString},
)

func (*UploadedFileTokenResource) Metadata() *object.Metadata { return uploadedFileTokenResourceMetadata }

// NewUploadedFileTokenResource references the upload token tokenID.
func NewUploadedFileTokenResource(tokenID string) *UploadedFileTokenResource {
	r := &UploadedFileTokenResource{}
	if tokenID != "" {
		r.Set("token", tokenID)
	}
	return r
}

// Token returns the referenced upload token id.
func (r *UploadedFileTokenResource) Token() (string, bool) { return stringField(&r.Base, "token") }

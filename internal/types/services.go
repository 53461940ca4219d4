package types

import (
	"mediaclient/internal/object"
	"mediaclient/internal/request"
)

var (
	entryParams = object.NewMetadata(nil,
		object.Property{Name: "entry", Type: object.TypeObject, SubType: TypeMediaEntry},
	)
	entryIDParams = object.NewMetadata(nil,
		object.Property{Name: "entryId", Type: object.TypeString},
	)
	entryUpdateParams = object.NewMetadata(nil,
		object.Property{Name: "entryId", Type: object.TypeString},
		object.Property{Name: "mediaEntry", Type: object.TypeObject, SubType: TypeMediaEntry},
	)
	entryListParams = object.NewMetadata(nil,
		object.Property{Name: "filter", Type: object.TypeObject, SubType: TypeMediaEntryFilter},
		object.Property{Name: "pager", Type: object.TypeObject, SubType: TypeFilterPager},
	)
	addContentParams = object.NewMetadata(nil,
		object.Property{Name: "entryId", Type: object.TypeString},
		object.Property{Name: "resource", Type: object.TypeObject, SubType: TypeContentResource},
	)
	uploadTokenParams = object.NewMetadata(nil,
		object.Property{Name: "uploadToken", Type: object.TypeObject, SubType: TypeUploadToken},
	)
	uploadTokenIDParams = object.NewMetadata(nil,
		object.Property{Name: "uploadTokenId", Type: object.TypeString},
	)
	uploadParams = object.NewMetadata(nil,
		object.Property{Name: "uploadTokenId", Type: object.TypeString},
		object.Property{Name: "fileData", Type: object.TypeFile},
	)
)

// MediaService builds media service calls.
type MediaService struct{}

// Media is the media service.
var Media MediaService

// Add creates an entry without content.
func (MediaService) Add(entry *MediaEntry) *request.Request {
	return request.New("media", "add", entryParams).
		Set("entry", entry).
		ReturnsObject(TypeMediaEntry)
}

// Get fetches an entry.
func (MediaService) Get(entryID string) *request.Request {
	return request.New("media", "get", entryIDParams).
		Set("entryId", entryID).
		ReturnsObject(TypeMediaEntry)
}

// Update changes the writable fields set on entry.
func (MediaService) Update(entryID string, entry *MediaEntry) *request.Request {
	return request.New("media", "update", entryUpdateParams).
		Set("entryId", entryID).
		Set("mediaEntry", entry).
		ReturnsObject(TypeMediaEntry)
}

// Delete removes an entry.
func (MediaService) Delete(entryID string) *request.Request {
	return request.New("media", "delete", entryIDParams).
		Set("entryId", entryID)
}

// List returns one page of entries. filter and pager may be nil.
func (MediaService) List(filter *MediaEntryFilter, pager *FilterPager) *request.Request {
	req := request.New("media", "list", entryListParams).ReturnsObject(TypeMediaListResponse)
	if filter != nil {
		req.Set("filter", filter)
	}
	if pager != nil {
		req.Set("pager", pager)
	}
	return req
}

// AddContent attaches content to an entry that has none.
func (MediaService) AddContent(entryID string, resource object.Object) *request.Request {
	req := request.New("media", "addContent", addContentParams).ReturnsObject(TypeMediaEntry)
	if entryID != "" {
		req.Set("entryId", entryID)
	}
	return req.Set("resource", resource)
}

// UploadTokenService builds upload token service calls.
type UploadTokenService struct{}

// UploadTokens is the upload token service.
var UploadTokens UploadTokenService

// Add creates an upload token.
func (UploadTokenService) Add(token *UploadToken) *request.Request {
	req := request.New("uploadToken", "add", uploadTokenParams).ReturnsObject(TypeUploadToken)
	if token != nil {
		req.Set("uploadToken", token)
	}
	return req
}

// Get fetches an upload token.
func (UploadTokenService) Get(tokenID string) *request.Request {
	return request.New("uploadToken", "get", uploadTokenIDParams).
		Set("uploadTokenId", tokenID).
		ReturnsObject(TypeUploadToken)
}

// Delete removes an upload token.
func (UploadTokenService) Delete(tokenID string) *request.Request {
	return request.New("uploadToken", "delete", uploadTokenIDParams).
		Set("uploadTokenId", tokenID)
}

// Upload sends file to the token, in chunks when the client allows it. Uploads of the same
// token resume from the recorded upload session.
func (UploadTokenService) Upload(tokenID string, file object.File) *request.UploadRequest {
	up := request.NewUpload("uploadToken", "upload", uploadParams, "fileData").
		WithChunkUpload(true).
		WithResumeKey("uploadTokenId")
	up.Set("uploadTokenId", tokenID)
	up.Set("fileData", file)
	up.ReturnsObject(TypeUploadToken)
	return up
}

package server

import (
	"fmt"
	"strings"
	"time"
)

type actionFunc func(h *Handler, p params) (any, error)

var actions = map[string]actionFunc{
	"session.start":      sessionStart,
	"media.add":          mediaAdd,
	"media.get":          mediaGet,
	"media.update":       mediaUpdate,
	"media.delete":       mediaDelete,
	"media.list":         mediaList,
	"media.addContent":   mediaAddContent,
	"uploadToken.add":    uploadTokenAdd,
	"uploadToken.get":    uploadTokenGet,
	"uploadToken.delete": uploadTokenDelete,
}

// call runs one action after checking its session token.
func (h *Handler) call(service, action string, p params) (any, error) {
	fn, ok := actions[service+"."+action]
	if !ok {
		return nil, apiException("SERVICE_ACTION_FORBIDDEN",
			fmt.Sprintf("The action %q in service %q is not supported", action, service))
	}
	if err := h.authorize(service, action, p); err != nil {
		return nil, err
	}
	return fn(h, p)
}

func sessionStart(h *Handler, p params) (any, error) {
	if p.str("secret") != h.cfg.Secret {
		return nil, apiException("START_SESSION_ERROR", "Error while starting session for partner")
	}
	if id, ok := p.int("partnerId"); ok && h.cfg.PartnerID != 0 && id != h.cfg.PartnerID {
		return nil, apiException("START_SESSION_ERROR", "Error while starting session for partner")
	}
	expiry := 24 * time.Hour
	if secs, ok := p.int("expiry"); ok && secs > 0 {
		expiry = time.Duration(secs) * time.Second
	}
	return h.state.startSession(expiry), nil
}

func mediaAdd(h *Handler, p params) (any, error) {
	entry := p.object("entry")
	if entry.str("name") == "" {
		return nil, apiException("PROPERTY_VALIDATION_CANNOT_BE_NULL", "The property \"name\" cannot be null")
	}
	return h.state.addEntry(entry), nil
}

func mediaGet(h *Handler, p params) (any, error) {
	id := p.str("entryId")
	e, ok := h.state.entry(id)
	if !ok {
		return nil, entryNotFound(id)
	}
	return e, nil
}

func mediaUpdate(h *Handler, p params) (any, error) {
	id := p.str("entryId")
	fields := p.object("mediaEntry")
	e, ok := h.state.updateEntry(id, fields, fields.cleared())
	if !ok {
		return nil, entryNotFound(id)
	}
	return e, nil
}

func mediaDelete(h *Handler, p params) (any, error) {
	id := p.str("entryId")
	if !h.state.deleteEntry(id) {
		return nil, entryNotFound(id)
	}
	return nil, nil
}

func mediaList(h *Handler, p params) (any, error) {
	filter := p.object("filter")
	ids := map[string]bool{}
	for id := range strings.SplitSeq(filter.str("idIn"), ",") {
		if id != "" {
			ids[id] = true
		}
	}
	nameLike := filter.str("nameLike")
	mediaType, byType := filter.int("mediaTypeEqual")

	matches := h.state.listEntries(func(e map[string]any) bool {
		if len(ids) > 0 && !ids[e["id"].(string)] {
			return false
		}
		if name, _ := e["name"].(string); nameLike != "" && !strings.Contains(name, nameLike) {
			return false
		}
		if t, _ := e["mediaType"].(int64); byType && t != mediaType {
			return false
		}
		return true
	})
	if filter.str("orderBy") == "-createdAt" {
		for i, j := 0, len(matches)-1; i < j; i, j = i+1, j-1 {
			matches[i], matches[j] = matches[j], matches[i]
		}
	}

	pager := p.object("pager")
	size, ok := pager.int("pageSize")
	if !ok || size <= 0 {
		size = 30
	}
	index, ok := pager.int("pageIndex")
	if !ok || index <= 0 {
		index = 1
	}
	total := len(matches)
	start := min(int((index-1)*size), total)
	end := min(start+int(size), total)

	objects := make([]any, 0, end-start)
	for _, e := range matches[start:end] {
		objects = append(objects, e)
	}
	return map[string]any{
		"objectType": "KalturaMediaListResponse",
		"totalCount": int64(total),
		"objects":    objects,
	}, nil
}

func mediaAddContent(h *Handler, p params) (any, error) {
	resource := p.object("resource")
	if t := resource.str("objectType"); t != "KalturaUploadedFileTokenResource" {
		return nil, apiException("RESOURCE_TYPE_NOT_SUPPORTED", fmt.Sprintf("Resource type %q is not supported", t))
	}
	return h.state.attachContent(p.str("entryId"), resource.str("token"))
}

func uploadTokenAdd(h *Handler, p params) (any, error) {
	return h.state.addToken(p.object("uploadToken")), nil
}

func uploadTokenGet(h *Handler, p params) (any, error) {
	t, ok := h.state.token(p.str("uploadTokenId"))
	if !ok {
		return nil, apiException("UPLOAD_TOKEN_NOT_FOUND", "Upload token not found")
	}
	return t, nil
}

func uploadTokenDelete(h *Handler, p params) (any, error) {
	if !h.state.deleteToken(p.str("uploadTokenId")) {
		return nil, apiException("UPLOAD_TOKEN_NOT_FOUND", "Upload token not found")
	}
	return nil, nil
}

func entryNotFound(id string) error {
	return apiException("ENTRY_ID_NOT_FOUND", fmt.Sprintf("Entry id %q not found", id))
}

package plugin

import (
	"github.com/Mschirtzinger/hardlinks/internal/catalog"
)

// Hook event names fired by the host.
const (
	EventRenamePost = "pep_api_data_obj_rename_post"
	EventUnlinkPre  = "pep_api_data_obj_unlink_pre"
	EventTrimPre    = "pep_api_data_obj_trim_pre"
	EventTrimPost   = "pep_api_data_obj_trim_post"
)

// Direct invocation operation names.
const (
	OpMakeLink        = "hard_links_make_link"
	OpCountLinks      = "hard_links_count_links"
	OpListDataObjects = "hard_links_list_data_objects"
)

// DataObjInput is the host's input for single-object operations (unlink, trim).
type DataObjInput struct {
	ObjPath string
}

// DataObjCopyInput is the host's input for two-object operations (rename).
type DataObjCopyInput struct {
	Src  DataObjInput
	Dest DataObjInput
}

// Request is a hook input decoded into the shape its event needs.
// The concrete types are RenameRequest, UnlinkRequest, TrimRequest and
// TrimPostRequest.
type Request interface {
	Event() string
}

// RenameRequest is the input of a rename-post hook.
type RenameRequest struct {
	Source      catalog.LogicalPath
	Destination catalog.LogicalPath
}

// UnlinkRequest is the input of an unlink-pre hook.
type UnlinkRequest struct {
	Path catalog.LogicalPath
}

// TrimRequest is the input of a trim-pre hook.
type TrimRequest struct {
	Path catalog.LogicalPath
}

// TrimPostRequest is the input of a trim-post hook.
type TrimPostRequest struct {
	Path catalog.LogicalPath
}

func (RenameRequest) Event() string   { return EventRenamePost }
func (UnlinkRequest) Event() string   { return EventUnlinkPre }
func (TrimRequest) Event() string     { return EventTrimPre }
func (TrimPostRequest) Event() string { return EventTrimPost }

// Path returns the logical path a request is about, for logs and events.
func Path(req Request) catalog.LogicalPath {
	switch r := req.(type) {
	case RenameRequest:
		return r.Destination
	case UnlinkRequest:
		return r.Path
	case TrimRequest:
		return r.Path
	case TrimPostRequest:
		return r.Path
	}
	return ""
}

// decodeRequest turns the host's raw input for event into a Request.
// Pointer and value forms of the input structs are both accepted.
func decodeRequest(event string, input any) (Request, error) {
	switch event {
	case EventRenamePost:
		in, ok := asCopyInput(input)
		if !ok {
			return nil, typeError("%s expects a data object copy input, got %T", event, input)
		}
		src, err := parsePath("source", in.Src.ObjPath)
		if err != nil {
			return nil, err
		}
		dst, err := parsePath("destination", in.Dest.ObjPath)
		if err != nil {
			return nil, err
		}
		return RenameRequest{Source: src, Destination: dst}, nil

	case EventUnlinkPre, EventTrimPre, EventTrimPost:
		in, ok := asObjInput(input)
		if !ok {
			return nil, typeError("%s expects a data object input, got %T", event, input)
		}
		p, err := parsePath("object", in.ObjPath)
		if err != nil {
			return nil, err
		}
		switch event {
		case EventUnlinkPre:
			return UnlinkRequest{Path: p}, nil
		case EventTrimPre:
			return TrimRequest{Path: p}, nil
		default:
			return TrimPostRequest{Path: p}, nil
		}
	}
	return nil, typeError("no request shape for %s", event)
}

func asObjInput(input any) (DataObjInput, bool) {
	switch in := input.(type) {
	case *DataObjInput:
		if in == nil {
			return DataObjInput{}, false
		}
		return *in, true
	case DataObjInput:
		return in, true
	}
	return DataObjInput{}, false
}

func asCopyInput(input any) (DataObjCopyInput, bool) {
	switch in := input.(type) {
	case *DataObjCopyInput:
		if in == nil {
			return DataObjCopyInput{}, false
		}
		return *in, true
	case DataObjCopyInput:
		return in, true
	}
	return DataObjCopyInput{}, false
}

func parsePath(what, raw string) (catalog.LogicalPath, error) {
	p, err := catalog.ParsePath(raw)
	if err != nil {
		return "", newError(catalog.StatusUserInputFormat, err, "invalid %s path", what)
	}
	return p, nil
}

package browser

import (
	"strings"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
)

// blockResources intercepts requests of the listed types (images, fonts,
// media). The returned router must be stopped when the page closes.
func blockResources(page *rod.Page, types []string) *rod.HijackRouter {
	block := blockSet(types)
	if len(block) == 0 {
		return nil
	}
	router := page.HijackRequests()
	router.MustAdd("*", func(h *rod.Hijack) {
		if shouldBlock(block, string(h.Request.Type())) {
			h.Response.Fail(proto.NetworkErrorReasonBlockedByClient)
			return
		}
		h.ContinueRequest(&proto.FetchContinueRequest{})
	})
	go router.Run()
	return router
}

// blockSet normalises configured type names. Stylesheets are dropped: the
// palette needs computed styles.
func blockSet(types []string) map[string]bool {
	set := make(map[string]bool, len(types))
	for _, t := range types {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" || t == "stylesheets" || t == "stylesheet" {
			continue
		}
		set[t] = true
	}
	return set
}

func shouldBlock(block map[string]bool, resType string) bool {
	switch lower := strings.ToLower(resType); lower {
	case "image":
		return block["images"] || block["image"]
	case "font":
		return block["fonts"] || block["font"]
	case "media":
		return block["media"]
	case "stylesheet":
		return false
	default:
		return block[lower]
	}
}

package market

import (
	"strings"

	"github.com/amass-me/locale-engine/pkg/model"
)

// BuildLink returns basePath unchanged for the default market, otherwise "/<slug>" + basePath.
func (r *Registry) BuildLink(m model.Market, basePath string) string {
	if basePath != "" && !strings.HasPrefix(basePath, "/") {
		basePath = "/" + basePath
	}
	if r.IsDefault(m) {
		if basePath == "" {
			return "/"
		}
		return basePath
	}
	return "/" + r.SlugFor(m) + basePath
}

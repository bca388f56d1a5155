package types

import (
	"fmt"

	"github.com/tidwall/gjson"
)

// ModelRegistry is the backend's fetchAvailableModels response.
type ModelRegistry struct {
	// Models maps model id to backend metadata, in document order.
	Models Extensions

	// Extra holds the remaining members.
	Extra Extensions
}

// IDs returns the model ids in document order.
func (r ModelRegistry) IDs() []string {
	return r.Models.Keys()
}

// UnmarshalJSON decodes a registry. A "models" member that is not an object yields an
// empty registry.
func (r *ModelRegistry) UnmarshalJSON(data []byte) error {
	*r = ModelRegistry{}
	if !eachMember(data, func(key string, value gjson.Result) {
		if key == "models" && value.IsObject() {
			value.ForEach(func(id, meta gjson.Result) bool {
				r.Models.Set(id.String(), raw(meta))
				return true
			})
			return
		}
		r.Extra.Set(key, raw(value))
	}) {
		return fmt.Errorf("%w: model registry", ErrNotObject)
	}
	return nil
}

// ModelCatalog is the public models.list response.
type ModelCatalog struct {
	Models []ModelInfo `json:"models"`
}

// ModelInfo describes one model in the public catalog.
type ModelInfo struct {
	// Name is the resource name, "models/{id}".
	Name string `json:"name"`

	// Version is the model version.
	Version string `json:"version"`

	// DisplayName is the human readable name.
	DisplayName string `json:"displayName"`

	// Description is a short description of the model.
	Description string `json:"description"`

	// InputTokenLimit is the maximum number of prompt tokens.
	InputTokenLimit int `json:"inputTokenLimit"`

	// OutputTokenLimit is the maximum number of generated tokens.
	OutputTokenLimit int `json:"outputTokenLimit"`

	// SupportedGenerationMethods lists the RPCs the model accepts.
	SupportedGenerationMethods []string `json:"supportedGenerationMethods"`
}

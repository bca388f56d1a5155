package transform

import (
	"fmt"

	"github.com/sashabaranov/go-openai"

	"github.com/zalbiraw/antigravity/pkg/types"
)

const (
	modelVersion     = "001"
	inputTokenLimit  = 1048576
	outputTokenLimit = 8192
	modelOwner       = "antigravity"
)

// GenerationMethods are the RPCs every listed model supports.
var GenerationMethods = []string{"generateContent", "streamGenerateContent"}

// BuildModelCatalog lists every model of the backend registry in the public catalog
// format, in registry order. An empty registry yields an empty list.
func BuildModelCatalog(reg types.ModelRegistry) types.ModelCatalog {
	ids := reg.IDs()
	catalog := types.ModelCatalog{
		Models: make([]types.ModelInfo, 0, len(ids)),
	}

	for _, id := range ids {
		catalog.Models = append(catalog.Models, types.ModelInfo{
			Name:                       "models/" + id,
			Version:                    modelVersion,
			DisplayName:                id,
			Description:                fmt.Sprintf("Imported model %s", id),
			InputTokenLimit:            inputTokenLimit,
			OutputTokenLimit:           outputTokenLimit,
			SupportedGenerationMethods: append([]string(nil), GenerationMethods...),
		})
	}

	return catalog
}

// BuildOpenAIModelList lists the registry in the OpenAI /v1/models format. created is
// reported as the creation time of every model.
func BuildOpenAIModelList(reg types.ModelRegistry, created int64) openai.ModelsList {
	ids := reg.IDs()
	list := openai.ModelsList{
		Models: make([]openai.Model, 0, len(ids)),
	}

	for _, id := range ids {
		list.Models = append(list.Models, openai.Model{
			ID:        id,
			Object:    "model",
			OwnedBy:   modelOwner,
			CreatedAt: created,
		})
	}

	return list
}

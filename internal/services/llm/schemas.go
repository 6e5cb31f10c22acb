package llm

import (
	"encoding/json"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

func stringArray() map[string]interface{} {
	return map[string]interface{}{
		"type":  "array",
		"items": map[string]interface{}{"type": "string"},
	}
}

// VibeSchema constrains the interpretation response
var VibeSchema = map[string]interface{}{
	"type": "object",
	"properties": map[string]interface{}{
		"search_queries":  stringArray(),
		"place_types":     stringArray(),
		"vibe_attributes": stringArray(),
		"vibe_summary":    map[string]interface{}{"type": "string"},
		"mood_color":      map[string]interface{}{"type": "string"},
	},
	"required": []string{"search_queries", "place_types", "vibe_attributes", "vibe_summary", "mood_color"},
}

// PhotoSchema constrains the photo scoring response
var PhotoSchema = map[string]interface{}{
	"type": "object",
	"properties": map[string]interface{}{
		"vibe_score":        map[string]interface{}{"type": "number"},
		"matching_elements": stringArray(),
		"vibe_description":  map[string]interface{}{"type": "string"},
		"standout_detail":   map[string]interface{}{"type": "string"},
	},
	"required": []string{"vibe_score", "matching_elements", "vibe_description", "standout_detail"},
}

// EventsSchema describes the grounded events response. Gemini cannot enforce
// it together with the search tool, so it is rendered into the prompt instead.
var EventsSchema = map[string]interface{}{
	"type": "object",
	"properties": map[string]interface{}{
		"events": map[string]interface{}{
			"type": "array",
			"items": map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"name":        map[string]interface{}{"type": "string"},
					"venue":       map[string]interface{}{"type": "string"},
					"date":        map[string]interface{}{"type": "string"},
					"description": map[string]interface{}{"type": "string"},
					"url":         map[string]interface{}{"type": "string"},
					"source":      map[string]interface{}{"type": "string"},
				},
				"required": []string{"name", "venue", "date", "description"},
			},
		},
	},
	"required": []string{"events"},
}

// schemaInstruction renders a schema as a plain-text output contract
func schemaInstruction(schema map[string]interface{}) string {
	data, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return "Respond with JSON only."
	}
	return "Respond with a single JSON object only, no prose and no code fences, matching this JSON schema:\n" + string(data)
}

// convertToGenaiSchema converts a map[string]interface{} representation of a JSON schema
// to a genai.Schema structure.
func convertToGenaiSchema(schemaMap map[string]interface{}) (*genai.Schema, error) {
	if len(schemaMap) == 0 {
		return nil, nil
	}

	schema := &genai.Schema{}

	if typeStr, ok := schemaMap["type"].(string); ok {
		switch strings.ToLower(typeStr) {
		case "object":
			schema.Type = genai.TypeObject
		case "array":
			schema.Type = genai.TypeArray
		case "string":
			schema.Type = genai.TypeString
		case "number":
			schema.Type = genai.TypeNumber
		case "integer":
			schema.Type = genai.TypeInteger
		case "boolean":
			schema.Type = genai.TypeBoolean
		default:
			return nil, fmt.Errorf("unsupported schema type %q", typeStr)
		}
	}

	if desc, ok := schemaMap["description"].(string); ok {
		schema.Description = desc
	}

	switch enumVals := schemaMap["enum"].(type) {
	case []string:
		schema.Enum = enumVals
	case []interface{}:
		for _, v := range enumVals {
			if s, ok := v.(string); ok {
				schema.Enum = append(schema.Enum, s)
			}
		}
	}

	switch reqVals := schemaMap["required"].(type) {
	case []string:
		schema.Required = reqVals
	case []interface{}:
		for _, v := range reqVals {
			if s, ok := v.(string); ok {
				schema.Required = append(schema.Required, s)
			}
		}
	}

	if minVal, ok := schemaMap["minimum"].(float64); ok {
		schema.Minimum = &minVal
	}
	if maxVal, ok := schemaMap["maximum"].(float64); ok {
		schema.Maximum = &maxVal
	}

	if itemsMap, ok := schemaMap["items"].(map[string]interface{}); ok {
		itemSchema, err := convertToGenaiSchema(itemsMap)
		if err != nil {
			return nil, fmt.Errorf("failed to convert items schema: %w", err)
		}
		schema.Items = itemSchema
	}

	if propsMap, ok := schemaMap["properties"].(map[string]interface{}); ok {
		schema.Properties = make(map[string]*genai.Schema)
		for propName, propVal := range propsMap {
			propMap, ok := propVal.(map[string]interface{})
			if !ok {
				continue
			}
			propSchema, err := convertToGenaiSchema(propMap)
			if err != nil {
				return nil, fmt.Errorf("failed to convert property '%s': %w", propName, err)
			}
			schema.Properties[propName] = propSchema
		}
	}

	return schema, nil
}

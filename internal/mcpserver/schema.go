package mcpserver

import "github.com/testforge/cardforge/internal/domain"

func inputSchema(properties map[string]any, required []string) map[string]any {
	s := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		s["required"] = required
	}
	return s
}

func str(description string) map[string]any {
	return map[string]any{"type": "string", "description": description}
}

func boolean(description string) map[string]any {
	return map[string]any{"type": "boolean", "description": description}
}

func integer(description string) map[string]any {
	return map[string]any{"type": "integer", "description": description}
}

func testTypeNames() []string {
	out := make([]string, 0, len(domain.AllTestTypes))
	for _, tt := range domain.AllTestTypes {
		out = append(out, string(tt))
	}
	return out
}

func testTypes(description string) map[string]any {
	return map[string]any{
		"type":        "array",
		"description": description,
		"items":       map[string]any{"type": "string", "enum": testTypeNames()},
	}
}

func configProperty() map[string]any {
	return map[string]any{
		"type":        "object",
		"description": "Card configuration: cardType, cardId, elements, cssProperties, testTypes, metadata",
		"required":    []string{"cardType", "cardId", "elements", "testTypes"},
	}
}

func targetProperty() map[string]any {
	return map[string]any{
		"type":        "object",
		"description": "Environment override",
		"properties": map[string]any{
			"branch":       str("Branch of the studio deployment"),
			"host":         str("Host override, replaces the branch host"),
			"path":         str("Studio page path"),
			"queryPrefix":  str("Fragment prefix before the card id"),
			"featureFlags": str("Query string appended to the path"),
		},
	}
}

func generateSchema(withTestType bool) map[string]any {
	props := map[string]any{
		"config":        configProperty(),
		"save":          boolean("Write the artifacts under the project"),
		"project":       str("Project name; the default project when empty"),
		"emitFallbacks": boolean("Emit the fallback selector table in the page object"),
	}
	required := []string{"config"}
	if withTestType {
		props["testType"] = map[string]any{"type": "string", "enum": testTypeNames()}
		required = append(required, "testType")
	}
	return inputSchema(props, required)
}

func extractSchema() map[string]any {
	return inputSchema(map[string]any{
		"cardId":    str("Card (fragment) id"),
		"target":    targetProperty(),
		"testTypes": testTypes("Test types of the built configuration, css when empty"),
		"snapshot": map[string]any{
			"type":        "object",
			"description": "Captured element data used instead of a browser",
		},
		"generate": boolean("Also generate the suite"),
		"save":     boolean("Generate and write the suite"),
		"project":  str("Project name"),
	}, []string{"cardId"})
}

func scriptSchema() map[string]any {
	return inputSchema(map[string]any{
		"cardId":   str("Card (fragment) id"),
		"target":   targetProperty(),
		"fileName": str("Save the script as scripts/<fileName> in the project"),
		"project":  str("Project name"),
	}, []string{"cardId"})
}

func runSchema(fix bool) map[string]any {
	props := map[string]any{
		"cardType":       str("Card type"),
		"testTypes":      testTypes("Test types to run"),
		"files":          map[string]any{"type": "array", "items": map[string]any{"type": "string"}, "description": "Test file names"},
		"project":        str("Project name"),
		"grep":           str("Playwright --grep"),
		"browserProject": str("Playwright --project"),
		"workers":        integer("Playwright workers"),
		"timeoutSeconds": integer("Run timeout in seconds"),
		"baseURL":        str("BASE_URL for the tests"),
	}
	if fix {
		delete(props, "files")
		props["config"] = configProperty()
		props["maxAttempts"] = integer("Attempt limit override")
		props["validateOnly"] = boolean("Stop once the artifacts validate")
		return inputSchema(props, nil)
	}
	return inputSchema(props, []string{"cardType"})
}

func validateSchema() map[string]any {
	return inputSchema(map[string]any{
		"config":    configProperty(),
		"cardType":  str("Card type of saved files, when no config is given"),
		"testTypes": testTypes("Test types to load"),
		"project":   str("Project name"),
	}, nil)
}

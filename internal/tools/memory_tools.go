package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/nugget/contreact/internal/memory"
)

// RegisterMemoryTools exposes the persistent memory store to the agent:
// write, read, list, delete, and pattern_search, all scoped to the
// store's run.
func RegisterMemoryTools(r *Registry, store *memory.Store) {
	r.Register(&Tool{
		Name:        "write",
		Description: "Write a value to persistent memory under a specified key. Overwrites if key exists.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"key": map[string]any{
					"type":        "string",
					"description": "The key to store the value under",
				},
				"value": map[string]any{
					"type":        "string",
					"description": "The value to store",
				},
			},
			"required": []string{"key", "value"},
		},
		Handler: func(ctx context.Context, args map[string]any) (string, error) {
			key := stringArg(args, "key")
			if key == "" {
				return "Error: 'key' argument is required", nil
			}
			created, err := store.Write(key, stringArg(args, "value"))
			if err != nil {
				return "", err
			}
			if created {
				return fmt.Sprintf("Wrote value to key '%s'", key), nil
			}
			return fmt.Sprintf("Updated key '%s' with new value", key), nil
		},
	})

	r.Register(&Tool{
		Name:        "read",
		Description: "Read a value from persistent memory by key.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"key": map[string]any{
					"type":        "string",
					"description": "The key to retrieve the value for",
				},
			},
			"required": []string{"key"},
		},
		Handler: func(ctx context.Context, args map[string]any) (string, error) {
			key := stringArg(args, "key")
			value, found, err := store.Read(key)
			if err != nil {
				return "", err
			}
			if !found {
				return fmt.Sprintf("Error: Key '%s' not found", key), nil
			}
			return value, nil
		},
	})

	r.Register(&Tool{
		Name:        "list",
		Description: "List all keys currently stored in persistent memory.",
		Parameters: map[string]any{
			"type":       "object",
			"properties": map[string]any{},
			"required":   []string{},
		},
		Handler: func(ctx context.Context, args map[string]any) (string, error) {
			keys, err := store.Keys()
			if err != nil {
				return "", err
			}
			if len(keys) == 0 {
				return "No keys stored", nil
			}
			return strings.Join(keys, ", "), nil
		},
	})

	r.Register(&Tool{
		Name:        "delete",
		Description: "Delete a key and its associated value from persistent memory.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"key": map[string]any{
					"type":        "string",
					"description": "The key to delete",
				},
			},
			"required": []string{"key"},
		},
		Handler: func(ctx context.Context, args map[string]any) (string, error) {
			key := stringArg(args, "key")
			existed, err := store.Delete(key)
			if err != nil {
				return "", err
			}
			if !existed {
				return fmt.Sprintf("Key '%s' did not exist; nothing deleted", key), nil
			}
			return fmt.Sprintf("Deleted key '%s'", key), nil
		},
	})

	r.Register(&Tool{
		Name:        "pattern_search",
		Description: "Search for keys in persistent memory that contain a specific pattern.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"pattern": map[string]any{
					"type":        "string",
					"description": "Substring to search for in keys",
				},
			},
			"required": []string{"pattern"},
		},
		Handler: func(ctx context.Context, args map[string]any) (string, error) {
			pattern := stringArg(args, "pattern")
			keys, err := store.SearchKeys(pattern)
			if err != nil {
				return "", err
			}
			if len(keys) == 0 {
				return fmt.Sprintf("No keys found matching pattern '%s'", pattern), nil
			}
			return strings.Join(keys, ", "), nil
		},
	})
}

package bot

import (
	"fmt"
	"strings"
)

// maxNameLen keeps subscription names short enough for callback data, which
// Telegram caps at 64 bytes.
const maxNameLen = 32

// ParseAddArgs parses the arguments of /add. Accepted forms:
//
//	/add <name> <handle>
//	/add <handle>        (the handle doubles as the name)
func ParseAddArgs(args string) (name, handle string, err error) {
	parts := strings.Fields(args)
	switch len(parts) {
	case 1:
		handle = normalizeHandle(parts[0])
		name = handle
	case 2:
		name = parts[0]
		handle = normalizeHandle(parts[1])
	default:
		return "", "", fmt.Errorf("usage: /add <name> <handle>")
	}

	if handle == "" {
		return "", "", fmt.Errorf("usage: /add <name> <handle>")
	}
	if len(name) > maxNameLen {
		return "", "", fmt.Errorf("name is too long, %d characters max", maxNameLen)
	}
	if strings.Contains(name, ":") {
		return "", "", fmt.Errorf("name must not contain \":\"")
	}
	return name, handle, nil
}

func normalizeHandle(s string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(s), "@"))
}

package validate

import (
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// LineTracker maps YAML field paths ("routes[1].prefix") to line numbers
type LineTracker struct {
	lines map[string]int
}

// NewLineTracker indexes a YAML document
func NewLineTracker(data []byte) (*LineTracker, error) {
	var node yaml.Node
	if err := yaml.Unmarshal(data, &node); err != nil {
		return nil, err
	}

	tracker := &LineTracker{
		lines: make(map[string]int),
	}
	tracker.extractLines(&node, "")
	return tracker, nil
}

// GetLine returns the line number for a field path, or 0
func (lt *LineTracker) GetLine(path string) int {
	return lt.lines[path]
}

// LineForMessage finds the line of the field path a message starts with.
// Shorter parent paths are tried when the full path is not in the file,
// e.g. a defaulted field under a section that is present.
func (lt *LineTracker) LineForMessage(msg string) int {
	path := leadingPath(msg)
	for path != "" {
		if line := lt.GetLine(path); line > 0 {
			return line
		}
		idx := strings.LastIndexAny(path, ".[")
		if idx <= 0 {
			break
		}
		path = path[:idx]
	}
	return 0
}

// leadingPath returns the field path a message starts with, if any
func leadingPath(msg string) string {
	end := strings.IndexAny(msg, ": ")
	if end == -1 {
		end = len(msg)
	}
	path := msg[:end]
	for _, c := range path {
		ok := c >= 'a' && c <= 'z' || c >= '0' && c <= '9' || c == '_' || c == '.' || c == '[' || c == ']'
		if !ok {
			return ""
		}
	}
	return path
}

func (lt *LineTracker) extractLines(node *yaml.Node, path string) {
	if node == nil {
		return
	}

	switch node.Kind {
	case yaml.DocumentNode:
		if len(node.Content) > 0 {
			lt.extractLines(node.Content[0], path)
		}

	case yaml.MappingNode:
		for i := 0; i+1 < len(node.Content); i += 2 {
			keyNode := node.Content[i]
			newPath := keyNode.Value
			if path != "" {
				newPath = path + "." + keyNode.Value
			}
			lt.lines[newPath] = keyNode.Line
			lt.extractLines(node.Content[i+1], newPath)
		}

	case yaml.SequenceNode:
		for i, item := range node.Content {
			indexPath := path + "[" + strconv.Itoa(i) + "]"
			lt.lines[indexPath] = item.Line
			lt.extractLines(item, indexPath)
		}
	}
}

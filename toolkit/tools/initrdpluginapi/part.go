// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.

package initrdpluginapi

import (
	"fmt"
	"os"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	PluginName = "initrd"

	pluginKey        = "plugin"
	partsKey         = "parts"
	mergeKey         = "<<"
	propertiesPrefix = PluginName + "-"
)

// UnmarshalPropertiesFile reads a part definition from a file. See UnmarshalProperties.
func UnmarshalPropertiesFile(partFilePath string, partName string) (*InitrdPluginProperties, error) {
	partData, err := os.ReadFile(partFilePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read part file (%s):\n%w", partFilePath, err)
	}

	properties, err := UnmarshalProperties(partData, partName)
	if err != nil {
		return nil, fmt.Errorf("invalid part file (%s):\n%w", partFilePath, err)
	}

	return properties, nil
}

// UnmarshalProperties extracts and validates the initrd plugin properties of a part.
//
// The data is either a single part mapping or a project file with a 'parts' mapping, in which case partName selects
// the part. Keys that are not prefixed with 'initrd-' belong to the build orchestrator and are ignored.
func UnmarshalProperties(data []byte, partName string) (*InitrdPluginProperties, error) {
	var document yaml.Node
	err := yaml.Unmarshal(data, &document)
	if err != nil {
		return nil, err
	}

	properties := &InitrdPluginProperties{}
	if len(document.Content) == 0 {
		return properties, nil
	}

	part, err := selectPart(document.Content[0], partName)
	if err != nil {
		return nil, err
	}

	err = checkPluginName(part)
	if err != nil {
		return nil, err
	}

	pluginData, err := extractPluginProperties(part)
	if err != nil {
		return nil, err
	}

	err = UnmarshalAndValidateYaml(pluginData, properties)
	if err != nil {
		return nil, err
	}

	return properties, nil
}

func selectPart(root *yaml.Node, partName string) (*yaml.Node, error) {
	if root.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("line %d: part definition must be a mapping", root.Line)
	}

	parts := mappingValue(root, partsKey)
	if parts == nil {
		if partName != "" {
			return nil, fmt.Errorf("part (%s) requested but the file has no '%s' mapping", partName, partsKey)
		}
		return root, nil
	}

	if parts.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("line %d: '%s' must be a mapping", parts.Line, partsKey)
	}

	if partName == "" {
		name, err := findInitrdPart(parts)
		if err != nil {
			return nil, err
		}
		partName = name
	}

	part := mappingValue(parts, partName)
	if part == nil {
		return nil, fmt.Errorf("part (%s) not found", partName)
	}

	if part.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("line %d: part (%s) must be a mapping", part.Line, partName)
	}

	return part, nil
}

// findInitrdPart returns the name of the only part that uses the initrd plugin.
func findInitrdPart(parts *yaml.Node) (string, error) {
	var found []string
	for _, pair := range mappingPairs(parts) {
		plugin := mappingValue(pair[1], pluginKey)
		if plugin != nil && plugin.Value == PluginName && !slices.Contains(found, pair[0].Value) {
			found = append(found, pair[0].Value)
		}
	}

	switch len(found) {
	case 0:
		return "", fmt.Errorf("no part uses the '%s' plugin", PluginName)
	case 1:
		return found[0], nil
	default:
		return "", fmt.Errorf("multiple parts use the '%s' plugin (%s): a part name must be specified",
			PluginName, strings.Join(found, ", "))
	}
}

func checkPluginName(part *yaml.Node) error {
	plugin := mappingValue(part, pluginKey)
	if plugin == nil || plugin.Value == PluginName {
		return nil
	}

	return fmt.Errorf("line %d: part uses plugin (%s), expected (%s)", plugin.Line, plugin.Value, PluginName)
}

// extractPluginProperties returns a yaml document that only contains the plugin's own keys.
// yaml.Node.Decode() doesn't respect the KnownFields() option, so the keys are re-encoded and decoded by
// UnmarshalYaml instead. Aliases are replaced by copies of their anchored nodes, since the anchors are not part of the
// re-encoded document.
func extractPluginProperties(part *yaml.Node) ([]byte, error) {
	properties := &yaml.Node{
		Kind: yaml.MappingNode,
		Tag:  "!!map",
	}

	keyIndexes := make(map[string]int)
	for _, pair := range mappingPairs(part) {
		key := pair[0]
		if !strings.HasPrefix(key.Value, propertiesPrefix) {
			continue
		}

		value := resolveAliases(pair[1])

		// Explicit keys override keys pulled in by a merge.
		index, found := keyIndexes[key.Value]
		if found {
			properties.Content[index+1] = value
			continue
		}

		keyIndexes[key.Value] = len(properties.Content)
		properties.Content = append(properties.Content, resolveAliases(key), value)
	}

	if len(properties.Content) == 0 {
		return nil, nil
	}

	data, err := yaml.Marshal(properties)
	if err != nil {
		return nil, fmt.Errorf("failed to extract '%s' properties:\n%w", propertiesPrefix+"*", err)
	}

	return data, nil
}

// mappingPairs returns the key/value pairs of a mapping, with merge keys ('<<') expanded ahead of the mapping's own
// pairs. Alias values are followed.
func mappingPairs(mapping *yaml.Node) [][2]*yaml.Node {
	mapping = followAlias(mapping)
	if mapping.Kind != yaml.MappingNode {
		return nil
	}

	var merged [][2]*yaml.Node
	var own [][2]*yaml.Node
	for i := 0; i+1 < len(mapping.Content); i += 2 {
		key := mapping.Content[i]
		value := followAlias(mapping.Content[i+1])

		if key.Kind == yaml.ScalarNode && key.Value == mergeKey {
			merged = append(merged, mergedPairs(value)...)
			continue
		}

		own = append(own, [2]*yaml.Node{key, value})
	}

	return append(merged, own...)
}

func mergedPairs(value *yaml.Node) [][2]*yaml.Node {
	if value.Kind != yaml.SequenceNode {
		return mappingPairs(value)
	}

	// Earlier mappings in a merge sequence take precedence, so they are applied last.
	var pairs [][2]*yaml.Node
	for i := len(value.Content) - 1; i >= 0; i-- {
		pairs = append(pairs, mappingPairs(value.Content[i])...)
	}
	return pairs
}

func followAlias(node *yaml.Node) *yaml.Node {
	for node.Kind == yaml.AliasNode && node.Alias != nil {
		node = node.Alias
	}
	return node
}

// resolveAliases returns a copy of the node with every alias replaced by the node it refers to.
func resolveAliases(node *yaml.Node) *yaml.Node {
	node = followAlias(node)

	resolved := *node
	resolved.Anchor = ""
	if len(node.Content) > 0 {
		resolved.Content = make([]*yaml.Node, len(node.Content))
		for i, child := range node.Content {
			resolved.Content[i] = resolveAliases(child)
		}
	}

	return &resolved
}

func mappingValue(mapping *yaml.Node, key string) *yaml.Node {
	var value *yaml.Node
	for _, pair := range mappingPairs(mapping) {
		if pair[0].Value == key {
			value = pair[1]
		}
	}

	return value
}

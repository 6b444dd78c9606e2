// Copyright 2026 The Conductor Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package skill

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	// skillFilename is the definition file inside each skill directory.
	skillFilename = "SKILL.md"

	frontmatterDelimiter = "---"
)

// ParseFile reads a SKILL.md: YAML frontmatter with the metadata,
// markdown body with the instructions. Supporting files live next to
// it and are reachable through BasePath.
func ParseFile(path string) (*Skill, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read skill file: %w", err)
	}
	return Parse(data, filepath.Dir(path))
}

// Parse builds a skill from SKILL.md content.
func Parse(data []byte, basePath string) (*Skill, error) {
	front, body, err := splitFrontmatter(data)
	if err != nil {
		return nil, fmt.Errorf("invalid skill file: %w", err)
	}

	var meta Metadata
	if err := yaml.Unmarshal(front, &meta); err != nil {
		return nil, fmt.Errorf("invalid skill frontmatter: %w", err)
	}
	if meta.Description == "" {
		return nil, fmt.Errorf("skill %s: description is required", meta.Name)
	}

	s, err := New(meta, strings.TrimSpace(string(body)))
	if err != nil {
		return nil, err
	}
	s.BasePath = basePath
	s.Scripts = findScripts(basePath)
	return s, nil
}

// LoadDir loads every <dir>/<skill>/SKILL.md into a fresh index.
// Directories without a SKILL.md are skipped.
func LoadDir(dir string) (*Index, error) {
	index := NewIndex()

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read skills directory: %w", err)
	}
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		path := filepath.Join(dir, entry.Name(), skillFilename)
		if _, err := os.Stat(path); os.IsNotExist(err) {
			continue
		}
		s, err := ParseFile(path)
		if err != nil {
			return nil, fmt.Errorf("skill %s: %w", entry.Name(), err)
		}
		if err := index.Add(s); err != nil {
			return nil, err
		}
	}
	return index, nil
}

// splitFrontmatter separates the YAML header from the markdown body.
func splitFrontmatter(data []byte) ([]byte, []byte, error) {
	scanner := bufio.NewScanner(bytes.NewReader(data))

	if !scanner.Scan() {
		return nil, nil, fmt.Errorf("empty file")
	}
	if strings.TrimSpace(scanner.Text()) != frontmatterDelimiter {
		return nil, nil, fmt.Errorf("missing opening frontmatter delimiter")
	}

	var front []string
	closed := false
	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == frontmatterDelimiter {
			closed = true
			break
		}
		front = append(front, line)
	}
	if !closed {
		return nil, nil, fmt.Errorf("missing closing frontmatter delimiter")
	}

	var body []string
	for scanner.Scan() {
		body = append(body, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, nil, err
	}
	return []byte(strings.Join(front, "\n")), []byte(strings.Join(body, "\n")), nil
}

// findScripts collects executable helpers under the skill's scripts
// directory, if present.
func findScripts(basePath string) []string {
	if basePath == "" {
		return nil
	}
	entries, err := os.ReadDir(filepath.Join(basePath, "scripts"))
	if err != nil {
		return nil
	}
	var scripts []string
	for _, entry := range entries {
		if !entry.IsDir() {
			scripts = append(scripts, filepath.Join(basePath, "scripts", entry.Name()))
		}
	}
	return scripts
}

package world

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Data files expected under the world data directory.
const (
	itemsFile     = "items.json"
	resourcesFile = "resources.json"
	monstersFile  = "monsters.json"
	mapsFile      = "maps.json"
)

const itemsSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "array",
  "items": {
    "type": "object",
    "required": ["code", "name", "type"],
    "properties": {
      "code": {"type": "string", "minLength": 1},
      "name": {"type": "string"},
      "type": {"type": "string"},
      "subtype": {"type": "string"},
      "level": {"type": "integer", "minimum": 0},
      "craft": {
        "type": "object",
        "required": ["skill", "requirements"],
        "properties": {
          "skill": {"type": "string", "minLength": 1},
          "level": {"type": "integer", "minimum": 0},
          "quantity": {"type": "integer", "minimum": 1},
          "requirements": {
            "type": "array",
            "minItems": 1,
            "items": {
              "type": "object",
              "required": ["code", "quantity"],
              "properties": {
                "code": {"type": "string", "minLength": 1},
                "quantity": {"type": "integer", "minimum": 1}
              }
            }
          }
        }
      }
    }
  }
}`

const dropHolderSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "array",
  "items": {
    "type": "object",
    "required": ["code", "name", "level"],
    "properties": {
      "code": {"type": "string", "minLength": 1},
      "name": {"type": "string"},
      "skill": {"type": "string"},
      "level": {"type": "integer", "minimum": 0},
      "drops": {
        "type": "array",
        "items": {
          "type": "object",
          "required": ["code"],
          "properties": {
            "code": {"type": "string", "minLength": 1},
            "rate": {"type": "integer", "minimum": 1}
          }
        }
      }
    }
  }
}`

const mapsSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "array",
  "items": {
    "type": "object",
    "required": ["x", "y"],
    "properties": {
      "x": {"type": "integer"},
      "y": {"type": "integer"},
      "content_type": {"type": "string"},
      "content_code": {"type": "string"}
    }
  }
}`

// Load reads and validates the four data files under dir and builds the
// snapshot. Everything is read once; the snapshot never refreshes.
func Load(dir string) (*Snapshot, error) {
	var items []Item
	if err := loadFile(filepath.Join(dir, itemsFile), itemsSchema, &items); err != nil {
		return nil, err
	}
	var resources []Resource
	if err := loadFile(filepath.Join(dir, resourcesFile), dropHolderSchema, &resources); err != nil {
		return nil, err
	}
	var monsters []Monster
	if err := loadFile(filepath.Join(dir, monstersFile), dropHolderSchema, &monsters); err != nil {
		return nil, err
	}
	var tiles []Tile
	if err := loadFile(filepath.Join(dir, mapsFile), mapsSchema, &tiles); err != nil {
		return nil, err
	}
	return New(items, resources, monsters, tiles), nil
}

func loadFile(path, schema string, out any) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("world data: %w", err)
	}
	if err := validate(path, schema, raw); err != nil {
		return err
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(out); err != nil {
		return fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	return nil
}

func validate(path, schema string, raw []byte) error {
	s, err := jsonschema.CompileString(filepath.Base(path)+".schema", schema)
	if err != nil {
		return fmt.Errorf("compile schema for %s: %w", filepath.Base(path), err)
	}
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	if err := s.Validate(doc); err != nil {
		return fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	return nil
}

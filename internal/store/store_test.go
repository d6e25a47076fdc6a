package store

import "testing"

func TestJSONBObject(t *testing.T) {
	b, err := jsonbObject(nil)
	if err != nil {
		t.Fatal(err)
	}
	if string(b) != "{}" {
		t.Errorf("expected {}, got %s", b)
	}

	b, err = jsonbObject(map[string]any{"channel": "general"})
	if err != nil {
		t.Fatal(err)
	}
	if string(b) != `{"channel":"general"}` {
		t.Errorf("unexpected encoding %s", b)
	}
}

func TestSchemaEmbedded(t *testing.T) {
	if schemaSQL == "" {
		t.Fatal("schema.sql not embedded")
	}
}

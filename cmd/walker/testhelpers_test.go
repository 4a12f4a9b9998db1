package main

import (
	"bytes"
	"os"
	"path/filepath"
	"sync"
	"testing"
)

// sampleRepo lays out a small mixed Stylus/JavaScript repository.
func sampleRepo(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	files := map[string]string{
		"styles/main.styl": "@import 'base'\n@import 'nib'\n",
		"styles/base.styl": "body\n  margin 0\n",
		"src/app.js":       "var util = require('./util');\nvar _ = require('lodash');\n",
		"src/util.js":      "module.exports = 1;\n",
		"README.md":        "# sample\n",
	}
	for rel, content := range files {
		p := filepath.Join(root, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(p, []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
	}
	return root
}

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

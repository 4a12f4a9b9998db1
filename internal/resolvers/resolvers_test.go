package resolvers

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"

	werrors "walker/internal/errors"
	"walker/internal/strategy"
)

// writeTree creates files under root. A path ending in "/" makes a directory.
func writeTree(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for rel, content := range files {
		p := filepath.Join(root, filepath.FromSlash(rel))
		if rel[len(rel)-1] == '/' {
			if err := os.MkdirAll(p, 0755); err != nil {
				t.Fatalf("mkdir %s: %v", rel, err)
			}
			continue
		}
		if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
			t.Fatalf("mkdir %s: %v", rel, err)
		}
		if err := os.WriteFile(p, []byte(content), 0644); err != nil {
			t.Fatalf("write %s: %v", rel, err)
		}
	}
}

func newBasic(t *testing.T, opts Options) *Basic {
	t.Helper()
	b, err := NewBasic(opts, nil)
	if err != nil {
		t.Fatalf("NewBasic failed: %v", err)
	}
	return b
}

func newCommonJS(t *testing.T, opts CommonJSOptions) *CommonJS {
	t.Helper()
	r, err := NewCommonJS(opts, nil)
	if err != nil {
		t.Fatalf("NewCommonJS failed: %v", err)
	}
	return r
}

func TestClassify(t *testing.T) {
	tests := []struct {
		spec string
		want Kind
	}{
		{"./x", Relative},
		{"../x", Relative},
		{"/x", Absolute},
		{"x", NotExplicit},
		{"lib/x", NotExplicit},
		{".x", NotExplicit},
	}
	for _, tt := range tests {
		if got := Classify(tt.spec); got != tt.want {
			t.Errorf("Classify(%q) = %v, want %v", tt.spec, got, tt.want)
		}
	}
}

func TestBasic_Resolve(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"src/app.js":           "",
		"src/util.js":          "",
		"src/foo.js":           "",
		"src/lib/index.js":     "",
		"src/styles/main.styl": "",
		"vendor/shared/x.js":   "",
		"src/empty/":           "",
	})
	includer := filepath.Join(root, "src", "app.js")

	tests := []struct {
		name   string
		opts   Options
		spec   string
		want   string
		wantOK bool
	}{
		{
			name:   "relative plain file",
			opts:   Options{Extensions: []string{"js"}},
			spec:   "./util",
			want:   "src/util.js",
			wantOK: true,
		},
		{
			name:   "explicit extension",
			opts:   Options{Extensions: []string{"js"}},
			spec:   "./util.js",
			want:   "src/util.js",
			wantOK: true,
		},
		{
			name:   "existence gates extension order",
			opts:   Options{Extensions: []string{"coffee", "js"}},
			spec:   "./foo",
			want:   "src/foo.js",
			wantOK: true,
		},
		{
			name:   "directory index",
			opts:   Options{Extensions: []string{"js"}, IndexFile: "index"},
			spec:   "./lib",
			want:   "src/lib/index.js",
			wantOK: true,
		},
		{
			name:   "not explicit uses includer directory",
			opts:   Options{Extensions: []string{"styl", "css"}},
			spec:   "styles/main",
			want:   "src/styles/main.styl",
			wantOK: true,
		},
		{
			name:   "absolute against base path",
			opts:   Options{Extensions: []string{"js"}, BasePaths: []string{filepath.Join(root, "vendor")}},
			spec:   "/shared/x",
			want:   "vendor/shared/x.js",
			wantOK: true,
		},
		{
			name:   "parent relative",
			opts:   Options{Extensions: []string{"js"}},
			spec:   "../vendor/shared/x",
			want:   "vendor/shared/x.js",
			wantOK: true,
		},
		{
			name:   "not found",
			opts:   Options{Extensions: []string{"js"}, ExistingFilesOnly: true},
			spec:   "./missing",
			wantOK: false,
		},
		{
			name:   "directory without index",
			opts:   Options{Extensions: []string{"js"}, ExistingFilesOnly: true},
			spec:   "./empty",
			wantOK: false,
		},
		{
			name:   "synthesized when existing files are not required",
			opts:   Options{Extensions: []string{"js", "jsx"}},
			spec:   "./missing",
			want:   "src/missing.js",
			wantOK: true,
		},
		{
			name:   "synthesized keeps configured extension",
			opts:   Options{Extensions: []string{"js"}},
			spec:   "./missing.js",
			want:   "src/missing.js",
			wantOK: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := newBasic(t, tt.opts).Resolve(includer, tt.spec)
			if ok != tt.wantOK {
				t.Fatalf("Resolve(%q) ok = %v, want %v (path %q)", tt.spec, ok, tt.wantOK, got)
			}
			if !tt.wantOK {
				if got != "" {
					t.Errorf("unresolved specifier should not produce a path, got %q", got)
				}
				return
			}
			want := filepath.Join(root, filepath.FromSlash(tt.want))
			if got != want {
				t.Errorf("Resolve(%q) = %q, want %q", tt.spec, got, want)
			}
		})
	}
}

func TestBasic_Candidates(t *testing.T) {
	includer := "/repo/src/app.styl"

	t.Run("extensions before bare name", func(t *testing.T) {
		b := newBasic(t, Options{Extensions: []string{"styl", ".css"}, BasePaths: []string{"/repo/shared"}})
		got := b.Candidates(includer, "vars", nil)
		want := []string{
			"/repo/src/vars.styl",
			"/repo/src/vars.css",
			"/repo/src/vars",
			"/repo/shared/vars.styl",
			"/repo/shared/vars.css",
			"/repo/shared/vars",
		}
		if !reflect.DeepEqual(got, want) {
			t.Errorf("Candidates = %v, want %v", got, want)
		}
	})

	t.Run("bare name first", func(t *testing.T) {
		b := newBasic(t, Options{Extensions: []string{"styl"}, BareFirst: true})
		got := b.Candidates(includer, "./vars", nil)
		want := []string{"/repo/src/vars", "/repo/src/vars.styl"}
		if !reflect.DeepEqual(got, want) {
			t.Errorf("Candidates = %v, want %v", got, want)
		}
	})

	t.Run("absolute skips includer relative join", func(t *testing.T) {
		b := newBasic(t, Options{BasePaths: []string{"/repo/shared"}})
		got := b.Candidates(includer, "/vars", nil)
		want := []string{"/repo/src/vars", "/repo/shared/vars"}
		if !reflect.DeepEqual(got, want) {
			t.Errorf("Candidates = %v, want %v", got, want)
		}
	})
}

func TestCommonJS_Resolve(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"src/app.js":                  "",
		"src/helper.js":               "",
		"src/pkg/package.json":        `{"name": "pkg", "main": "lib/entry.js"}`,
		"src/pkg/lib/entry.js":        "",
		"src/nomain/package.json":     `{"name": "nomain"}`,
		"src/nomain/index.js":         "",
		"src/broken/package.json":     `{not json`,
		"src/broken/index.js":         "",
		"src/loop/package.json":       `{"main": "."}`,
		"node_modules/dep/index.js":   "",
		"src/deep/nested/consumer.js": "",
	})
	includer := filepath.Join(root, "src", "app.js")
	opts := DefaultCommonJSOptions()
	opts.Extensions = []string{"js", "jsx"}
	opts.ModuleDirectories = []string{"node_modules"}
	r := newCommonJS(t, opts)

	tests := []struct {
		name     string
		includer string
		spec     string
		want     string
		wantOK   bool
	}{
		{"bare name rooted at includer directory", includer, "helper", "src/helper.js", true},
		{"relative stays relative", includer, "./helper", "src/helper.js", true},
		{"manifest main", includer, "pkg", "src/pkg/lib/entry.js", true},
		{"manifest without main falls back to index", includer, "./nomain", "src/nomain/index.js", true},
		{"unparsable manifest falls back to index", includer, "./broken", "src/broken/index.js", true},
		{"manifest main pointing at itself terminates", includer, "./loop", "", false},
		{"module directory in ancestor", filepath.Join(root, "src", "deep", "nested", "consumer.js"), "dep", "node_modules/dep/index.js", true},
		{"missing module", includer, "nope", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := r.Resolve(tt.includer, tt.spec)
			if ok != tt.wantOK {
				t.Fatalf("Resolve(%q) ok = %v, want %v (path %q)", tt.spec, ok, tt.wantOK, got)
			}
			if tt.wantOK && got != filepath.Join(root, filepath.FromSlash(tt.want)) {
				t.Errorf("Resolve(%q) = %q, want %q", tt.spec, got, tt.want)
			}
		})
	}
}

func TestCommonJS_ManifestChangeIsSeen(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"app.js":             "",
		"pkg/package.json":   `{"main": "a.js"}`,
		"pkg/a.js":           "",
		"pkg/longer-name.js": "",
	})
	r := newCommonJS(t, CommonJSOptions{Options: Options{Extensions: []string{"js"}, ExistingFilesOnly: true}})
	includer := filepath.Join(root, "app.js")

	got, ok := r.Resolve(includer, "./pkg")
	if !ok || got != filepath.Join(root, "pkg", "a.js") {
		t.Fatalf("first Resolve = %q, %v", got, ok)
	}

	writeTree(t, root, map[string]string{"pkg/package.json": `{"main": "longer-name.js"}`})
	got, ok = r.Resolve(includer, "./pkg")
	if !ok || got != filepath.Join(root, "pkg", "longer-name.js") {
		t.Errorf("Resolve after manifest change = %q, %v", got, ok)
	}
}

type stubResolver struct {
	out map[string]string
}

func (s stubResolver) Resolve(_, specifier string) (string, bool) {
	p, ok := s.out[specifier]
	return p, ok
}

func TestChain_Resolve(t *testing.T) {
	normalize := stubResolver{out: map[string]string{"x": "/x"}}
	locate := stubResolver{out: map[string]string{"/x": "/abs/x.js"}}

	tests := []struct {
		name   string
		chain  Chain
		spec   string
		want   string
		wantOK bool
	}{
		{"each stage sees previous output", Chain{normalize, locate}, "x", "/abs/x.js", true},
		{"failing stage keeps current path", Chain{locate, normalize}, "x", "/x", true},
		{"nothing resolves keeps specifier", Chain{locate}, "x", "x", false},
		{"empty chain", nil, "x", "x", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := tt.chain.Resolve("/inc.js", tt.spec)
			if got != tt.want || ok != tt.wantOK {
				t.Errorf("Resolve = (%q, %v), want (%q, %v)", got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestRegistry_BuiltinResolvers(t *testing.T) {
	for _, name := range []string{BasicName, CommonJSName} {
		if !Registry.Has(name) {
			t.Errorf("resolver %q is not registered", name)
		}
	}

	r, err := Registry.Create(strategy.Spec{
		Name:   CommonJSName,
		Config: map[string]interface{}{"extensions": []interface{}{"coffee", "js"}},
	}, nil)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	cjs, ok := r.(*CommonJS)
	if !ok {
		t.Fatalf("Create returned %T, want *CommonJS", r)
	}
	if got := cjs.basic.Options(); got.IndexFile != "index" || !got.ExistingFilesOnly {
		t.Errorf("defaults not applied: %+v", got)
	}
	if cjs.opts.ManifestFile != "package.json" {
		t.Errorf("ManifestFile = %q, want package.json", cjs.opts.ManifestFile)
	}

	_, err = Registry.Create(strategy.Spec{Name: "amd"}, nil)
	if !werrors.HasCode(err, werrors.StrategyUnknown) {
		t.Errorf("expected unknown strategy error, got %v", err)
	}
}

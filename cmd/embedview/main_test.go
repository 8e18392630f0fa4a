package main

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"embedview/internal/archive"
	"embedview/internal/chart"
	"embedview/internal/config"
	"embedview/internal/datadir"
	"embedview/internal/embeddings"
	"embedview/internal/logging"
	"embedview/internal/sample"
	"embedview/internal/version"
)

func testEnv(t *testing.T) *env {
	t.Helper()
	t.Setenv(datadir.EnvVar, "")
	dd, err := datadir.New(t.TempDir())
	require.NoError(t, err)
	return &env{cfg: config.Default(), dd: dd, log: logging.Nop()}
}

func TestValidateServeMode(t *testing.T) {
	tests := []struct {
		name       string
		fake       bool
		embeddings string
		wantErr    string
	}{
		{"fake", true, "", ""},
		{"embeddings", false, "a.tar.gz", ""},
		{"both", true, "a.tar.gz", "mutually exclusive"},
		{"neither", false, "", "required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateServeMode(tt.fake, tt.embeddings)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestParsePointLine(t *testing.T) {
	base := t.TempDir()

	t.Run("object options are sorted", func(t *testing.T) {
		id, in, err := parsePointLine([]byte(`{"group":"g","x":1,"y":-2,"color":{"b":"x","a":3}}`), base)
		require.NoError(t, err)
		assert.Equal(t, "g", id)
		assert.Equal(t, 1.0, in.X)
		assert.Equal(t, -2.0, in.Y)
		require.Len(t, in.ColorOptions, 2)
		assert.Equal(t, "a", in.ColorOptions[0].Name)
		assert.Equal(t, embeddings.Number(3), in.ColorOptions[0].Value)
		assert.Equal(t, "b", in.ColorOptions[1].Name)
		assert.Empty(t, in.ShapeOptions)
	})

	t.Run("list options keep order", func(t *testing.T) {
		_, in, err := parsePointLine([]byte(`{"group":"g","x":0,"y":0,"shape":[{"name":"z","value":true},{"name":"a","value":"s"}]}`), base)
		require.NoError(t, err)
		require.Len(t, in.ShapeOptions, 2)
		assert.Equal(t, "z", in.ShapeOptions[0].Name)
		assert.Equal(t, embeddings.Bool(true), in.ShapeOptions[0].Value)
		assert.Equal(t, "a", in.ShapeOptions[1].Name)
	})

	t.Run("extras", func(t *testing.T) {
		_, in, err := parsePointLine([]byte(`{"group":"g","x":0,"y":0,"extras":[
			{"id":"t","name":"Text","type":"text","value":"hello"},
			{"id":"i","name":"Image","type":"image","value":"imgs/a.png"}]}`), base)
		require.NoError(t, err)
		require.Len(t, in.Extras, 2)
		assert.Equal(t, embeddings.Extra{ID: "t", Name: "Text", Type: embeddings.ExtraText, Value: "hello"}, in.Extras[0].Meta())
		img, ok := in.Extras[1].(*archive.ImageExtra)
		require.True(t, ok)
		assert.Equal(t, ".png", filepath.Ext(img.Filename()))
	})

	for _, tt := range []struct {
		name, line, wantErr string
	}{
		{"not json", `nope`, "invalid record"},
		{"unknown field", `{"group":"g","x":0,"y":0,"colour":{}}`, "invalid record"},
		{"missing group", `{"x":0,"y":0}`, "missing group"},
		{"missing y", `{"group":"g","x":0}`, "missing x or y"},
		{"duplicate option", `{"group":"g","x":0,"y":0,"color":[{"name":"a","value":1},{"name":"a","value":2}]}`, "duplicate option"},
		{"null option value", `{"group":"g","x":0,"y":0,"color":{"a":null}}`, "color"},
		{"nested option value", `{"group":"g","x":0,"y":0,"color":{"a":[1]}}`, "color"},
		{"scalar options", `{"group":"g","x":0,"y":0,"shape":"round"}`, "shape"},
		{"unknown extra type", `{"group":"g","x":0,"y":0,"extras":[{"id":"a","type":"audio","value":"x"}]}`, "unknown extra type"},
		{"extra without id", `{"group":"g","x":0,"y":0,"extras":[{"type":"text","value":"x"}]}`, "missing id"},
	} {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := parsePointLine([]byte(tt.line), base)
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func writePNG(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	img := image.NewGray(image.Rect(0, 0, 2, 2))
	img.Set(0, 0, color.White)
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, img))
	require.NoError(t, f.Close())
}

func TestRunPack(t *testing.T) {
	e := testEnv(t)
	dir := t.TempDir()
	writePNG(t, filepath.Join(dir, "imgs", "0.png"))

	points := strings.Join([]string{
		`# comment lines and blanks are skipped`,
		`{"group":"test","x":1,"y":1,"color":{"Label":1},"extras":[{"id":"img","name":"Image","type":"image","value":"imgs/0.png"}]}`,
		``,
		`{"group":"train","x":2,"y":2,"color":{"Label":2}}`,
		`{"group":"test","x":3,"y":3,"color":{"Label":1}}`,
	}, "\n")
	pointsPath := filepath.Join(dir, "points.jsonl")
	require.NoError(t, os.WriteFile(pointsPath, []byte(points), 0644))

	out := filepath.Join(t.TempDir(), "nested", "out.tar.gz")
	sum, err := runPack(context.Background(), e, pointsPath, out, archive.Options{Title: "Packed", TempDir: t.TempDir()})
	require.NoError(t, err)
	assert.Equal(t, 2, sum.Groups)
	assert.Equal(t, 3, sum.Points)
	assert.Equal(t, 1, sum.Resources)

	res, err := archive.ListFile(out)
	require.NoError(t, err)
	assert.Equal(t, "Packed", res.Document.Title)
	require.Len(t, res.Document.Groups, 2)
	assert.Equal(t, "test", res.Document.Groups[0].ID, "groups keep first-appearance order")
	assert.Equal(t, 2, res.Document.Groups[0].Points)
	assert.Equal(t, "train", res.Document.Groups[1].ID)
}

func TestRunPack_BadLineRemovesOutput(t *testing.T) {
	e := testEnv(t)
	dir := t.TempDir()
	pointsPath := filepath.Join(dir, "points.jsonl")
	require.NoError(t, os.WriteFile(pointsPath, []byte("{\"group\":\"g\",\"x\":1,\"y\":1}\n{\"group\":\"g\"}\n"), 0644))

	out := filepath.Join(t.TempDir(), "out.tar.gz")
	_, err := runPack(context.Background(), e, pointsPath, out, archive.Options{TempDir: t.TempDir()})
	assert.ErrorContains(t, err, "line 2")
	_, statErr := os.Stat(out)
	assert.True(t, os.IsNotExist(statErr))
}

func TestRunPack_MissingPointsFile(t *testing.T) {
	e := testEnv(t)
	_, err := runPack(context.Background(), e, filepath.Join(t.TempDir(), "none.jsonl"), "out.tar.gz", archive.Options{})
	assert.ErrorContains(t, err, "open points file")
}

func TestRunSampleInspectConvert(t *testing.T) {
	e := testEnv(t)
	path := filepath.Join(t.TempDir(), "sample.tar.gz")

	sum, err := runSample(context.Background(), e, path, sample.Options{Title: "Demo", TempDir: t.TempDir()})
	require.NoError(t, err)
	assert.Equal(t, 2, sum.Points)

	t.Run("inspect json", func(t *testing.T) {
		var out bytes.Buffer
		require.NoError(t, runInspect(context.Background(), e, path, &out, archive.ListOptions{JSONOutput: true}))
		var res archive.ListResult
		require.NoError(t, json.Unmarshal(out.Bytes(), &res))
		assert.Equal(t, "Demo", res.Document.Title)
		require.Len(t, res.Document.Groups, 1)
		assert.Equal(t, sample.GroupID, res.Document.Groups[0].ID)
	})

	t.Run("inspect text", func(t *testing.T) {
		var out bytes.Buffer
		require.NoError(t, runInspect(context.Background(), e, path, &out, archive.ListOptions{ArchivePath: path}))
		assert.Contains(t, out.String(), "Title: Demo")
	})

	t.Run("convert json", func(t *testing.T) {
		opts := chart.DefaultOptions()
		opts.LinkPrefix = "/static/"
		var out bytes.Buffer
		require.NoError(t, runConvert(context.Background(), e, path, &out, opts, false))
		var charts chart.Charts
		require.NoError(t, json.Unmarshal(out.Bytes(), &charts))
		require.Contains(t, charts, sample.GroupID)
		assert.NotNil(t, charts[sample.GroupID]["Ground truth label"]["Modality"])
		assert.Contains(t, out.String(), "/static/resources/")
	})

	t.Run("convert js", func(t *testing.T) {
		var out bytes.Buffer
		require.NoError(t, runConvert(context.Background(), e, path, &out, chart.DefaultOptions(), true))
		assert.True(t, strings.HasPrefix(out.String(), "var chartData = {"))
		assert.True(t, strings.HasSuffix(out.String(), ";\n"))
	})

	t.Run("missing archive", func(t *testing.T) {
		err := runInspect(context.Background(), e, filepath.Join(t.TempDir(), "none.tar.gz"), &bytes.Buffer{}, archive.ListOptions{})
		assert.Error(t, err)
	})
}

func TestRunSample_InvalidLocation(t *testing.T) {
	e := testEnv(t)
	_, err := runSample(context.Background(), e, "s3://bucket-only", sample.Options{})
	assert.ErrorContains(t, err, "invalid s3 location")
}

func TestRunServe_ShutsDownAndRemovesSession(t *testing.T) {
	e := testEnv(t)
	e.cfg.Server.Port = 0

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, runServe(ctx, e, true, ""))

	entries, err := os.ReadDir(e.dd.SessionsDir())
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestRunServe_BadArchive(t *testing.T) {
	e := testEnv(t)
	path := filepath.Join(t.TempDir(), "bad.tar.gz")
	require.NoError(t, os.WriteFile(path, []byte("not an archive"), 0644))

	err := runServe(context.Background(), e, false, path)
	assert.ErrorContains(t, err, "failed to open archive")

	entries, err := os.ReadDir(e.dd.SessionsDir())
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestPrintVersion(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, printVersion(&out, false))
	assert.Contains(t, out.String(), "embedview "+version.Full())
	assert.Contains(t, out.String(), "Go version:")

	out.Reset()
	require.NoError(t, printVersion(&out, true))
	var info version.BuildInfo
	require.NoError(t, json.Unmarshal(out.Bytes(), &info))
	assert.Equal(t, version.Info(), info.Version)
}

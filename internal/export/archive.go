/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package export

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"synthbox/internal/domain"
	"synthbox/internal/storage"
)

// DataYAMLName is the YOLO dataset descriptor file.
const DataYAMLName = "data.yaml"

// DataConfig is the YOLO data.yaml document.
type DataConfig struct {
	Path  string         `yaml:"path"`
	Train string         `yaml:"train"`
	Val   string         `yaml:"val"`
	Test  string         `yaml:"test,omitempty"`
	NC    int            `yaml:"nc"`
	Names map[int]string `yaml:"names"`
}

func newDataConfig(path string, classes []domain.ClassInfo) DataConfig {
	dc := DataConfig{Path: path, Names: make(map[int]string, len(classes))}
	for _, c := range classes {
		dc.Names[c.Index] = c.Name
		if c.Index+1 > dc.NC {
			dc.NC = c.Index + 1
		}
	}
	return dc
}

// SplitDataYAML describes a tree produced by storage.Split rooted at root.
func SplitDataYAML(root string, classes []domain.ClassInfo) ([]byte, error) {
	dc := newDataConfig(root, classes)
	dc.Train = filepath.ToSlash(filepath.Join("images", "train"))
	dc.Val = filepath.ToSlash(filepath.Join("images", "val"))
	dc.Test = filepath.ToSlash(filepath.Join("images", "test"))
	return yaml.Marshal(dc)
}

// WriteDataYAML writes data.yaml for a split dataset at root.
func WriteDataYAML(root string, classes []domain.ClassInfo) error {
	data, err := SplitDataYAML(root, classes)
	if err != nil {
		return fmt.Errorf("build data.yaml: %w", err)
	}
	return storage.WriteFileAtomic(filepath.Join(root, DataYAMLName), data)
}

// WriteArchive packs the images and labels of l into a zip at out, together
// with a data.yaml that points train and val at the unsplit image folder.
func WriteArchive(out string, l storage.Layout, classes []domain.ClassInfo) error {
	if !strings.HasSuffix(strings.ToLower(out), ".zip") {
		out += ".zip"
	}
	images, err := listFiles(l.Images, ".png")
	if err != nil {
		return err
	}
	labels, err := listFiles(l.Labels, ".txt")
	if err != nil {
		return err
	}
	zw, f, err := createZip(out)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	for _, p := range images {
		if err := addZipPath(zw, "images/"+filepath.Base(p), p); err != nil {
			return fmt.Errorf("zip add image: %w", err)
		}
	}
	for _, p := range labels {
		if err := addZipPath(zw, "labels/"+filepath.Base(p), p); err != nil {
			return fmt.Errorf("zip add label: %w", err)
		}
	}
	dc := newDataConfig(".", classes)
	dc.Train, dc.Val = "images", "images"
	manifest, err := yaml.Marshal(dc)
	if err != nil {
		return fmt.Errorf("build data.yaml: %w", err)
	}
	if err := addZipFile(zw, DataYAMLName, manifest); err != nil {
		return fmt.Errorf("zip add manifest: %w", err)
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("close zip: %w", err)
	}
	return f.Sync()
}

func listFiles(dir, ext string) ([]string, error) {
	ents, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", dir, err)
	}
	var out []string
	for _, e := range ents {
		if !e.IsDir() && strings.EqualFold(filepath.Ext(e.Name()), ext) {
			out = append(out, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(out)
	return out, nil
}

func createZip(outPath string) (*zip.Writer, *os.File, error) {
	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return nil, nil, fmt.Errorf("ensure out dir: %w", err)
	}
	f, err := os.Create(outPath)
	if err != nil {
		return nil, nil, fmt.Errorf("create zip: %w", err)
	}
	return zip.NewWriter(f), f, nil
}

func addZipFile(zw *zip.Writer, name string, data []byte) error {
	w, err := zw.Create(name)
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

func addZipPath(zw *zip.Writer, name, path string) error {
	src, err := os.Open(path)
	if err != nil {
		return err
	}
	defer func() { _ = src.Close() }()
	// PNGs are already compressed
	method := zip.Deflate
	if strings.EqualFold(filepath.Ext(path), ".png") {
		method = zip.Store
	}
	w, err := zw.CreateHeader(&zip.FileHeader{Name: name, Method: method})
	if err != nil {
		return err
	}
	_, err = io.Copy(w, src)
	return err
}

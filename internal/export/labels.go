/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package export

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"strings"

	"synthbox/internal/bbox"
	"synthbox/internal/storage"
)

// WriteLabels writes one YOLO line per label. The file is replaced atomically,
// so a crash never leaves a half-written label file.
func WriteLabels(path string, labels []bbox.Label) error {
	var buf bytes.Buffer
	for _, l := range labels {
		buf.WriteString(bbox.FormatLine(l))
		buf.WriteByte('\n')
	}
	if err := storage.WriteFileAtomic(path, buf.Bytes()); err != nil {
		return fmt.Errorf("write labels: %w", err)
	}
	return nil
}

// ReadLabels parses a label file. Blank lines are ignored.
func ReadLabels(path string) ([]bbox.Label, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()
	var out []bbox.Label
	sc := bufio.NewScanner(f)
	line := 0
	for sc.Scan() {
		line++
		s := strings.TrimSpace(sc.Text())
		if s == "" {
			continue
		}
		l, err := bbox.ParseLine(s)
		if err != nil {
			return nil, fmt.Errorf("%s:%d: %w", path, line, err)
		}
		out = append(out, l)
	}
	return out, sc.Err()
}

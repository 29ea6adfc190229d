/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package storage implements dataset persistence.
// It owns the on-disk output layout (images, labels, visualisations) with synced writes,
// the seeded train/val/test split into a YOLO dataset tree, and the run catalog.
// The catalog lives in <output>/.synthbox/catalog.sqlite unless a Postgres DSN is configured, and
// it records what each run produced.
package storage

// Copyright 2025 SnapEvent Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package media

import "fmt"

// Ingest failure reasons.
const (
	ReasonUnreachable  = "unreachable"
	ReasonUnsupported  = "unsupported"
	ReasonOverDuration = "over_duration"
	ReasonNoFrames     = "no_frames"
)

// IngestError is the unrecoverable ingest failure: the source could not be
// reached, its format is unsupported, it exceeds the download-path duration
// cap, or not a single frame could be produced. It is fatal to the video
// path; the caller falls back to metadata-only text extraction.
type IngestError struct {
	URL    string
	Reason string
	Err    error
}

func (e *IngestError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("ingest failed (%s) for %s: %v", e.Reason, e.URL, e.Err)
	}
	return fmt.Sprintf("ingest failed (%s) for %s", e.Reason, e.URL)
}

func (e *IngestError) Unwrap() error {
	return e.Err
}

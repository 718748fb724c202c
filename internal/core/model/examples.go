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

// Package model defines the core data structures for the extraction
// pipeline. This file provides fully-populated example objects that are
// serialized into interpreter prompts as few-shot guidance. Giving the
// model a complete, well-formed JSON example significantly improves the
// structure of its output.
package model

func strPtr(s string) *string { return &s }

// GetExampleEvent returns a complete DraftEvent used as the EXAMPLE_JSON
// vocabulary entry in interpreter prompt templates.
func GetExampleEvent() *DraftEvent {
	return &DraftEvent{
		Title:       strPtr("Jazz Night at the Blue Room"),
		Date:        strPtr("2025-12-05"),
		Time:        strPtr("20:00:00"),
		EndTime:     strPtr("23:00:00"),
		Location:    strPtr("The Blue Room, 417 Grand Ave, Oakland"),
		Description: strPtr("An evening of live jazz featuring the Marcus Reed Quartet. Doors open at 7:30 PM."),
		EventType:   strPtr("concert"),
		VenueType:   strPtr("music_venue"),
	}
}

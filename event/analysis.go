// Copyright 2025 Aegis Project
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package event

const (
	AnalysisCompletedEventType EventType = "analysis.completed"
	DecodeFailedEventType      EventType = "analysis.decode_failed"
)

// AnalysisCompletedEvent is published after every successful analysis
type AnalysisCompletedEvent struct {
	Subject string
	Score   int
	Tier    string
}

// DecodeFailedEvent is published when raw transaction bytes are
// rejected by the decoder
type DecodeFailedEvent struct {
	Reason string
}

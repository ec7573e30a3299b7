/*
Copyright 2025 Landed Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package model

// RequeueEntry is the request body for moving a dead-lettered queue entry
// back to PENDING.
type RequeueEntry struct {
	Note string `json:"note"`
}

// RecoverStuckEntries triggers an immediate recovery sweep of entries stuck
// in PROCESSING.
type RecoverStuckEntries struct {
	ThresholdMinutes int `json:"threshold_minutes"`
}

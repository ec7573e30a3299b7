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

package request

import (
	"bytes"
	"encoding/json"
	"net/http"

	"github.com/pkg/errors"
)

// ToJsonReq serializes a payload into a buffer ready for an HTTP request
// body.
func ToJsonReq(payload interface{}) (*bytes.Buffer, error) {
	encoded, err := json.Marshal(payload)
	if err != nil {
		return nil, errors.Wrap(err, "failed to encode request payload")
	}
	return bytes.NewBuffer(encoded), nil
}

// Call sends the request as JSON and decodes the JSON response body into
// response, which must be a pointer. The body is always drained and closed.
func Call(req *http.Request, response interface{}) (*http.Response, error) {
	req.Header.Set("Content-Type", "application/json")

	resp, err := new(http.Client).Do(req)
	if err != nil {
		return resp, errors.Wrap(err, "request failed")
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(response); err != nil {
		return resp, errors.Wrap(err, "failed to decode response")
	}
	return resp, nil
}

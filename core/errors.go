// Copyright 2025 Poiesic Systems
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


package core

import "errors"

// Domain validation errors
var (
	// ErrInvalidBookmark indicates a Bookmark failed validation.
	ErrInvalidBookmark = errors.New("invalid bookmark")

	// ErrInvalidEntity indicates an Entity failed validation.
	ErrInvalidEntity = errors.New("invalid entity")

	// ErrInvalidLink indicates an EntityBookmarkLink failed validation.
	ErrInvalidLink = errors.New("invalid entity bookmark link")

	// ErrEmptyURL indicates the URL field is empty.
	ErrEmptyURL = errors.New("url cannot be empty")

	// ErrEmptyUser indicates the UserId field is zero.
	ErrEmptyUser = errors.New("user id cannot be zero")

	// ErrEmptyEntityName indicates the entity Name field is empty.
	ErrEmptyEntityName = errors.New("entity name cannot be empty")

	// ErrInvalidEntityType indicates an unknown EntityType value.
	ErrInvalidEntityType = errors.New("invalid entity type")

	// ErrInvalidConfidence indicates a confidence score outside [0, 1].
	ErrInvalidConfidence = errors.New("confidence must be between 0 and 1")

	// ErrUnknownMetadataKind indicates a serialized metadata payload with an
	// unrecognized kind tag.
	ErrUnknownMetadataKind = errors.New("unknown metadata kind")
)

// Copyright (c) 2026 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

// Package handlers provides recovery strategies that plug into the
// [dispatch.Dispatcher] handler chain.
//
// Every handler returns the error it was given, unchanged, when it cannot
// help, so the dispatcher can tell which handlers acted and run a second
// pass over them.
package handlers

package store

import "errors"

var errHubClosed = errors.New("store closed")

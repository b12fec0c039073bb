package server

import _ "embed"

//go:embed static/chat.html
var chatPage []byte

// Copyright (c) Elliot Nunn
// Licensed under the MIT license

package main

import "golang.org/x/sys/unix"

const xattrName = "com.apple.ResourceFork"

const errNoAttr = unix.ENOATTR

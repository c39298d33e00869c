// Copyright (c) Elliot Nunn
// Licensed under the MIT license

package main

import "golang.org/x/sys/unix"

// Linux only allows attributes in a namespace, and this is the name
// netatalk and the Samba fruit module leave behind.
const xattrName = "user.com.apple.ResourceFork"

const errNoAttr = unix.ENODATA

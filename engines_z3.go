//go:build z3

package main

import _ "github.com/cottand/theorem/smt/z3"

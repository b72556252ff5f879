// Package vm implements the class model and bytecode interpreter that
// substitutions are applied to.
//
// This package contains:
//   - Classes with instance and static fields, and single inheritance
//   - VTable-based method dispatch
//   - A compact bytecode format with a decoder and encoder
//   - A stack interpreter with native methods
//   - Method and field handles
//
// Methods reference classes, fields and other methods through literals held
// by name, so compiled bodies can be serialised and relinked.
package vm

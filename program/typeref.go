//  Copyright (c) 2023 Uber Technologies, Inc.
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

package program

import "strings"

var _primitives = map[string]bool{
	"boolean": true, "byte": true, "char": true, "short": true,
	"int": true, "long": true, "float": true, "double": true,
}

// TypeRef is a reference to a type as written in a declaration: a name and a number of array
// dimensions. Type arguments are dropped.
type TypeRef struct {
	Name string
	Dims int
}

// ParseTypeRef reads "int", "String[]" or "java.util.List<String>".
func ParseTypeRef(s string) TypeRef {
	s = strings.TrimSpace(s)
	dims := 0
	for strings.HasSuffix(s, "[]") {
		dims++
		s = strings.TrimSpace(strings.TrimSuffix(s, "[]"))
	}
	if i := strings.IndexByte(s, '<'); i >= 0 {
		s = strings.TrimSpace(s[:i])
	}
	return TypeRef{Name: s, Dims: dims}
}

func (r TypeRef) String() string {
	return r.Name + strings.Repeat("[]", r.Dims)
}

// IsVoid reports whether the reference is void (or empty).
func (r TypeRef) IsVoid() bool { return r.Dims == 0 && (r.Name == "void" || r.Name == "") }

// IsPrimitive reports whether the reference is a primitive, non-array type.
func (r TypeRef) IsPrimitive() bool { return r.Dims == 0 && _primitives[r.Name] }

// IsBoolean reports whether the reference is the boolean primitive.
func (r TypeRef) IsBoolean() bool { return r.Dims == 0 && r.Name == "boolean" }

// IsIntegral reports whether the reference is an integral primitive.
func (r TypeRef) IsIntegral() bool {
	if r.Dims != 0 {
		return false
	}
	switch r.Name {
	case "int", "long", "short", "byte", "char":
		return true
	}
	return false
}

// IsArray reports whether the reference has array dimensions.
func (r TypeRef) IsArray() bool { return r.Dims > 0 }

// Elem returns the element type of an array reference.
func (r TypeRef) Elem() TypeRef {
	if r.Dims == 0 {
		return r
	}
	return TypeRef{Name: r.Name, Dims: r.Dims - 1}
}

// IsString reports whether the reference is java.lang.String.
func (r TypeRef) IsString() bool {
	return r.Dims == 0 && (r.Name == "String" || r.Name == "java.lang.String")
}

var (
	// Boolean is the boolean primitive.
	Boolean = TypeRef{Name: "boolean"}
	// Int is the int primitive.
	Int = TypeRef{Name: "int"}
	// Void is the void return type.
	Void = TypeRef{Name: "void"}
	// String is java.lang.String.
	String = TypeRef{Name: "String"}
	// Null is the type of the null literal.
	Null = TypeRef{Name: "null"}
)

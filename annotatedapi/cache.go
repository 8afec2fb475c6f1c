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

package annotatedapi

import (
	"bytes"
	"crypto/sha256"
	"encoding/gob"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/s2"
	"go.uber.org/immutaway/config"
	"go.uber.org/immutaway/program"
	"go.uber.org/zap"
)

// Load builds the store from the embedded contracts and the configured extra files. With a cache
// directory, the parsed contract set is cached, keyed by a hash of the inputs.
func Load(conf *config.Config, logger *zap.Logger) (*Store, error) {
	inputs := [][]byte{_defaultContracts}
	names := []string{"java.yaml"}
	for _, path := range conf.AnnotatedAPIs {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read contracts: %w", err)
		}
		inputs = append(inputs, data)
		names = append(names, path)
	}

	var cacheFile string
	if conf.APICacheDir != "" {
		cacheFile = filepath.Join(conf.APICacheDir, fmt.Sprintf(config.APICacheFile, hashInputs(inputs)))
		if types, err := readCache(cacheFile); err == nil {
			logger.Debug("loaded contracts from cache", zap.String("file", cacheFile), zap.Int("types", len(types)))
			return NewStore(types), nil
		} else if !errors.Is(err, os.ErrNotExist) {
			logger.Warn("ignoring unreadable contract cache", zap.String("file", cacheFile), zap.Error(err))
		}
	}

	var all []*program.Type
	for i, data := range inputs {
		types, err := Parse(data, names[i])
		if err != nil {
			return nil, err
		}
		all = append(all, types...)
	}
	if cacheFile != "" {
		if err := writeCache(cacheFile, all); err != nil {
			logger.Warn("cannot write contract cache", zap.String("file", cacheFile), zap.Error(err))
		}
	}
	return NewStore(all), nil
}

func hashInputs(inputs [][]byte) string {
	h := sha256.New()
	for _, in := range inputs {
		fmt.Fprintf(h, "%d:", len(in))
		h.Write(in)
	}
	return hex.EncodeToString(h.Sum(nil))[:16]
}

// The cache holds a flat copy of the contract types: the program model has back pointers, which
// gob cannot encode.
type cachedType struct {
	Name, Package string
	Interface     bool
	Supertypes    []string
	Annotations   map[string]string
	Fields        []cachedField
	Methods       []cachedMethod
}

type cachedField struct {
	Name        string
	Type        program.TypeRef
	Access      program.Access
	Final       bool
	Static      bool
	Annotations map[string]string
}

type cachedMethod struct {
	Name        string
	Return      program.TypeRef
	Access      program.Access
	Static      bool
	Abstract    bool
	Constructor bool
	Overrides   bool
	Annotations map[string]string
	Params      []cachedParam
}

type cachedParam struct {
	Name        string
	Type        program.TypeRef
	Annotations map[string]string
}

func flatten(types []*program.Type) []cachedType {
	out := make([]cachedType, len(types))
	for i, t := range types {
		ct := cachedType{Name: t.Name, Package: t.Package, Interface: t.Interface, Supertypes: t.Supertypes, Annotations: t.Annotations}
		for _, f := range t.Fields {
			ct.Fields = append(ct.Fields, cachedField{Name: f.Name, Type: f.Type, Access: f.Access, Final: f.Final, Static: f.Static, Annotations: f.Annotations})
		}
		for _, m := range t.Methods {
			cm := cachedMethod{Name: m.Name, Return: m.Return, Access: m.Access, Static: m.Static, Abstract: m.Abstract,
				Constructor: m.Constructor, Overrides: m.Overrides, Annotations: m.Annotations}
			for _, p := range m.Params {
				cm.Params = append(cm.Params, cachedParam{Name: p.Name, Type: p.Type, Annotations: p.Annotations})
			}
			ct.Methods = append(ct.Methods, cm)
		}
		out[i] = ct
	}
	return out
}

func inflate(cached []cachedType) []*program.Type {
	out := make([]*program.Type, len(cached))
	for i, ct := range cached {
		t := &program.Type{Name: ct.Name, Package: ct.Package, Interface: ct.Interface, Library: true,
			Supertypes: ct.Supertypes, Annotations: ct.Annotations}
		for _, cf := range ct.Fields {
			t.Fields = append(t.Fields, &program.Field{Owner: t, Name: cf.Name, Type: cf.Type, Access: cf.Access,
				Final: cf.Final, Static: cf.Static, Annotations: cf.Annotations})
		}
		for _, cm := range ct.Methods {
			m := &program.Method{Owner: t, Name: cm.Name, Return: cm.Return, Access: cm.Access, Static: cm.Static,
				Abstract: cm.Abstract, Constructor: cm.Constructor, Overrides: cm.Overrides, Annotations: cm.Annotations}
			for j, cp := range cm.Params {
				m.Params = append(m.Params, &program.Parameter{Owner: m, Index: j, Name: cp.Name, Type: cp.Type, Annotations: cp.Annotations})
			}
			t.Methods = append(t.Methods, m)
		}
		out[i] = t
	}
	return out
}

func writeCache(file string, types []*program.Type) (err error) {
	var buf bytes.Buffer
	writer := s2.NewWriter(&buf)
	if err := gob.NewEncoder(writer).Encode(flatten(types)); err != nil {
		return errors.Join(err, writer.Close())
	}
	if err := writer.Close(); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(file), 0o755); err != nil {
		return err
	}
	return os.WriteFile(file, buf.Bytes(), 0o644)
}

func readCache(file string) ([]*program.Type, error) {
	data, err := os.ReadFile(file)
	if err != nil {
		return nil, err
	}
	var cached []cachedType
	if err := gob.NewDecoder(s2.NewReader(bytes.NewReader(data))).Decode(&cached); err != nil {
		return nil, fmt.Errorf("decode contract cache: %w", err)
	}
	return inflate(cached), nil
}

package shader

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Owlkaline/Maat-Graphics-sub000/engine/renderer/gpu"
)

func TestDefaultLibraryWGSL(t *testing.T) {
	lib, err := DefaultLibrary("")
	if err != nil {
		t.Fatalf("DefaultLibrary: %v", err)
	}

	keys := []string{
		KeyGeometryVertex, KeyGeometryInstancedVertex, KeyGeometryFragment,
		KeyLightingVertex, KeyLightingFragment, KeyLightingMSAAFragment,
	}
	for _, key := range keys {
		s, err := lib.Get(key)
		if err != nil {
			t.Fatalf("Get(%s): %v", key, err)
		}
		src, err := s.Source(gpu.ShaderLanguageWGSL)
		if err != nil {
			t.Fatalf("%s WGSL source: %v", key, err)
		}
		if !strings.Contains(string(src.Code), "fn main") {
			t.Errorf("%s source has no main entry point", key)
		}
		if _, err := s.Source(gpu.ShaderLanguageSPIRV); err == nil {
			t.Errorf("%s: expected an error for missing SPIR-V", key)
		}
	}

	if _, err := lib.Get("missing"); err == nil {
		t.Error("expected an error for an unknown key")
	}
}

func spirvStub() []byte {
	code := make([]byte, 20)
	binary.LittleEndian.PutUint32(code, spirvMagic)
	return code
}

func TestDefaultLibrarySPIRV(t *testing.T) {
	dir := t.TempDir()
	for _, key := range []string{
		KeyGeometryVertex, KeyGeometryInstancedVertex, KeyGeometryFragment,
		KeyLightingVertex, KeyLightingFragment, KeyLightingMSAAFragment,
	} {
		if err := os.WriteFile(filepath.Join(dir, key+".spv"), spirvStub(), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	lib, err := DefaultLibrary(dir)
	if err != nil {
		t.Fatalf("DefaultLibrary: %v", err)
	}
	src, err := lib[KeyLightingFragment].Source(gpu.ShaderLanguageSPIRV)
	if err != nil {
		t.Fatalf("SPIR-V source: %v", err)
	}
	if len(src.Code) != 20 || src.EntryPoint != "main" {
		t.Errorf("unexpected source %+v", src)
	}
}

func TestDefaultLibraryMissingSPIRV(t *testing.T) {
	if _, err := DefaultLibrary(t.TempDir()); err == nil {
		t.Fatal("expected an error when SPIR-V modules are missing")
	}
}

func TestValidateSPIRV(t *testing.T) {
	if err := ValidateSPIRV(spirvStub()); err != nil {
		t.Errorf("valid header rejected: %v", err)
	}
	if err := ValidateSPIRV([]byte{1, 2, 3}); err == nil {
		t.Error("short module accepted")
	}
	bad := spirvStub()
	bad[0] = 0
	if err := ValidateSPIRV(bad); err == nil {
		t.Error("bad magic accepted")
	}
}

package dupes

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/zap"
)

// BenchmarkDetector_Find measures a scan over a generated sample tree where
// every tenth project shares its build script with another
func BenchmarkDetector_Find(b *testing.B) {
	root := b.TempDir()
	for i := 0; i < 200; i++ {
		dir := filepath.Join(root, fmt.Sprintf("project%03d", i))
		if err := os.MkdirAll(dir, 0o750); err != nil {
			b.Fatal(err)
		}
		content := fmt.Sprintf("apply plugin: 'java'\n// project %d\n", i)
		if i%10 == 0 {
			content = "apply plugin: 'java'\n"
		}
		if err := os.WriteFile(filepath.Join(dir, "build.gradle"), []byte(content), 0o600); err != nil {
			b.Fatal(err)
		}
		if err := os.WriteFile(filepath.Join(dir, "Main.java"), []byte("class Main {}"), 0o600); err != nil {
			b.Fatal(err)
		}
	}

	d := NewDetector(zap.NewNop(), 0)
	ctx := context.Background()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		groups, err := d.Find(ctx, root, ".gradle")
		if err != nil {
			b.Fatal(err)
		}
		if len(groups) != 1 {
			b.Fatalf("expected 1 duplicate group, got %d", len(groups))
		}
	}
}

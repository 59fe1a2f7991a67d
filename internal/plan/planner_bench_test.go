package plan

import (
	"fmt"
	"testing"

	"github.com/mrz1836/go-perf-matrix/internal/config"
)

// BenchmarkBuild measures planning with a growing number of sample generators
func BenchmarkBuild(b *testing.B) {
	src := config.MapSource{
		config.PropBranchName: "release",
		config.PropBaselines:  "4.10,last",
	}

	for _, size := range []int{0, 10, 100} {
		generators := make([]string, size)
		for i := range generators {
			generators[i] = fmt.Sprintf("project%03d", i)
		}

		b.Run(fmt.Sprintf("generators_%d", size), func(b *testing.B) {
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				if _, err := Build(Inputs{Generators: generators}, src); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}

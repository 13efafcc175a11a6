// Package all wires every built-in report module into one registry.
package all

import (
	"github.com/Sumatoshi-tech/qcfang/internal/modules"
	"github.com/Sumatoshi-tech/qcfang/internal/modules/bismark"
	"github.com/Sumatoshi-tech/qcfang/internal/modules/cellranger"
	"github.com/Sumatoshi-tech/qcfang/internal/modules/cellrangercount"
	"github.com/Sumatoshi-tech/qcfang/internal/modules/dragentime"
	"github.com/Sumatoshi-tech/qcfang/internal/modules/parsebio"
	"github.com/Sumatoshi-tech/qcfang/internal/modules/qiime2"
	"github.com/Sumatoshi-tech/qcfang/internal/modules/starsolo"
	"github.com/Sumatoshi-tech/qcfang/internal/modules/unitas"
)

// Registry returns the canonical module registry, in report section order.
func Registry() (*modules.Registry, error) {
	return modules.NewRegistry(
		bismark.New(),
		starsolo.New(),
		cellranger.New(),
		cellrangercount.New(),
		dragentime.New(),
		qiime2.New(),
		parsebio.New(),
		unitas.New(),
	)
}

// Package environment models the job environment: the process-isolation or
// container backend that actually hosts job execution. The slot manager
// only consumes this capability set; construction and lifecycle of the
// underlying isolation technology are outside this module's concerns.
package environment

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Pool identifies which CPU pool a CPU-limit query or update concerns.
type Pool int

const (
	Common Pool = iota
	Idle
)

// JobDirectoryManager is handed to a location once the environment has been
// initialized; its construction is the environment's responsibility.
type JobDirectoryManager interface {
	Path(slotIndex int) string
}

// Environment is the capability set §1 and §6 of the specification
// describe as the "job environment" external collaborator.
type Environment interface {
	// Init brings the environment up for a node advertising slotCount
	// slots, totalCpu cores, with the idle pool sized as idleFraction of
	// totalCpu. Idempotent per environment lifetime.
	Init(slotCount int, totalCpu decimal.Decimal, idleFraction float64) error
	// IsEnabled reports whether the environment is usable; false forever
	// disables the owning manager.
	IsEnabled() bool
	GetCpuLimit(pool Pool) decimal.Decimal
	UpdateCpuLimit(cpu decimal.Decimal)
	UpdateIdleCpuFraction(fraction float64)
	ClearSlotCpuSets(slotCount int)
	CreateJobDirectoryManager(path string, index int) (JobDirectoryManager, error)
	GetUserId(slotIndex int) (int, error)
	GetMajorPageFaultCount() (uint64, error)
	// RequiresVolumeManager reports whether this environment needs a root
	// volume manager constructed during AsyncInitialize (true for
	// container-backed environments, false for plain process isolation).
	RequiresVolumeManager() bool
}

type jobDirectoryManager struct {
	basePath string
}

func (m *jobDirectoryManager) Path(slotIndex int) string {
	return fmt.Sprintf("%s/slot%d", m.basePath, slotIndex)
}

type base struct {
	enabled      bool
	commonCpu    decimal.Decimal
	idleFraction float64
	totalCpu     decimal.Decimal
}

func (b *base) IsEnabled() bool {
	return b.enabled
}

func (b *base) GetCpuLimit(pool Pool) decimal.Decimal {
	if pool == Idle {
		return b.totalCpu.Mul(decimal.NewFromFloat(b.idleFraction))
	}
	return b.commonCpu
}

func (b *base) UpdateCpuLimit(cpu decimal.Decimal) {
	b.commonCpu = cpu
	b.totalCpu = cpu
}

func (b *base) UpdateIdleCpuFraction(fraction float64) {
	b.idleFraction = fraction
}

func (b *base) GetMajorPageFaultCount() (uint64, error) {
	return 0, nil
}

func (b *base) GetUserId(int) (int, error) {
	return 0, nil
}

func (b *base) CreateJobDirectoryManager(path string, _ int) (JobDirectoryManager, error) {
	return &jobDirectoryManager{basePath: path}, nil
}

// ProcessEnvironment is the plain process-isolation job environment. Its
// Init records the CPU budget and idle fraction and marks it enabled; it
// does not look for or kill processes left over from a prior run.
type ProcessEnvironment struct {
	base
	enableTmpfs bool
}

// NewProcessEnvironment constructs a disabled ProcessEnvironment; Init must
// run before it reports enabled.
func NewProcessEnvironment(enableTmpfs bool) *ProcessEnvironment {
	return &ProcessEnvironment{enableTmpfs: enableTmpfs}
}

func (p *ProcessEnvironment) Init(_ int, totalCpu decimal.Decimal, idleFraction float64) error {
	p.totalCpu = totalCpu
	p.commonCpu = totalCpu
	p.idleFraction = idleFraction
	p.enabled = true
	return nil
}

func (p *ProcessEnvironment) ClearSlotCpuSets(int) {}

func (p *ProcessEnvironment) RequiresVolumeManager() bool {
	return false
}

// ContainerEnvironment isolates jobs using per-slot containers, and
// therefore requires a root volume manager to be constructed during
// AsyncInitialize.
type ContainerEnvironment struct {
	base
	slotCpuSets map[int]string
}

// NewContainerEnvironment constructs a disabled ContainerEnvironment.
func NewContainerEnvironment() *ContainerEnvironment {
	return &ContainerEnvironment{slotCpuSets: make(map[int]string)}
}

func (c *ContainerEnvironment) Init(slotCount int, totalCpu decimal.Decimal, idleFraction float64) error {
	c.totalCpu = totalCpu
	c.commonCpu = totalCpu
	c.idleFraction = idleFraction
	c.slotCpuSets = make(map[int]string, slotCount)
	c.enabled = true
	return nil
}

// ClearSlotCpuSets drops every recorded per-slot CPU-set binding. Called
// when NUMA scheduling transitions from on to off.
func (c *ContainerEnvironment) ClearSlotCpuSets(slotCount int) {
	c.slotCpuSets = make(map[int]string, slotCount)
}

func (c *ContainerEnvironment) RequiresVolumeManager() bool {
	return true
}

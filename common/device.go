package common

// Device is the identifier of a block device
// the buffer cache keys its buffers with (Device, BlockNo)
type Device uint32

// BlockNo is the block number within a device
// block is the unit of device IO and its size is param.BSIZE
type BlockNo uint32

// CPUID identifies an execution core.
// the physical page allocator keeps one free list per core and the caller
// tells which core it runs on. cores are numbered from 0 to param.Config.CPUs-1
type CPUID int

// BootCPU is the core the allocator hands all pages to during initialization
const BootCPU CPUID = 0

// PID identifies a process, the unit which holds buffers.
// a buffer acquired by one process can be committed and released only by that process
type PID int

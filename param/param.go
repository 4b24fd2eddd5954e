/*
Boot-time parameters of the memory core.

These values describe the machine and the pools and are fixed once the core boots.
The constants are the layout every kernel build agrees on (page size, block size, the
physical memory window of the reference board). Config carries the values a boot can
choose: how many cores, buffers and buckets, and where physical memory ends.
*/
package param

const (
	// PGSIZE is the byte size of a physical page
	PGSIZE = 4096
	// BSIZE is the byte size of a device block, the unit the buffer cache holds
	BSIZE = 1024

	// KERNBASE is where the kernel is loaded in physical memory
	KERNBASE uint64 = 0x80000000
	// PHYSTOP is the end of physical memory on the reference board (128MB of RAM)
	PHYSTOP uint64 = KERNBASE + 128*1024*1024

	// NCPU is the default number of cores
	NCPU = 8
	// MAXOPBLOCKS is the max number of blocks one filesystem operation writes
	MAXOPBLOCKS = 10
	// NBUF is the default size of the buffer cache
	NBUF = MAXOPBLOCKS * 3
	// NBUCKET is the default number of hash buckets of the buffer cache
	// a prime keeps (dev*blockno) spread across buckets
	NBUCKET = 13
)

// PGROUNDUP rounds the address up to the next page boundary
func PGROUNDUP(a uint64) uint64 {
	return (a + PGSIZE - 1) &^ (PGSIZE - 1)
}

// PGROUNDDOWN rounds the address down to the page boundary
func PGROUNDDOWN(a uint64) uint64 {
	return a &^ (PGSIZE - 1)
}

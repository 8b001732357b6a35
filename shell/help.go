package shell

const banner = `========================================
   Memory Management Simulator
========================================
Type 'help' for available commands.

`

const helpText = `
MEMORY COMMANDS:
  init memory <size>                  Initialize physical memory (e.g. 1024, 4K)
  set allocator <type>                Set allocation strategy
                                      (first_fit, best_fit, worst_fit)
  malloc <size>                       Allocate a block of memory
  free <block_id>                     Free an allocated block
  dump memory                         Show the memory layout
  stats                               Show allocation statistics

CACHE COMMANDS:
  init cache                          Initialize the cache hierarchy
  cache read <address>                Read an address (e.g. 0x1A0 or 416)
  cache access <address>              Same as cache read
  cache write <address>               Write an address
  cache stats                         Show cache statistics
  cache config                        Show the cache configuration
  cache reset                         Reset the cache statistics

GENERAL:
  help                                Show this help
  clear                               Clear the screen
  exit, quit                          Leave the simulator

Lines starting with # are ignored.

`

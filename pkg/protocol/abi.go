package protocol

// Binary interface shared by the memory-registry guest and its hosts.
// All pointers and lengths are uint32 offsets into the guest's linear memory.

// InterfaceVersion is returned by memory_registry_version.
// Bump it whenever an existing export changes meaning.
const InterfaceVersion uint32 = 1

// PingMagic is the fixed value returned by wasm_test_ping.
const PingMagic uint32 = 0xF00DBABE

// Registry exports.
const (
	ExportVersion     = "memory_registry_version"
	ExportSubmit      = "submit_memory"
	ExportCount       = "get_memory_count"
	ExportReadByIndex = "get_memory_by_index"
	ExportLenByIndex  = "get_memory_len"
	ExportPing        = "wasm_test_ping"
	ExportAllocate    = "allocate"
	ExportDeallocate  = "deallocate"
	ExportAdd         = "add"
	ExportInitialize  = "_initialize"
)

// submit_memory results.
const (
	SubmitInvalidArgument int32 = -1
	SubmitInvalidEncoding int32 = -2
)

// get_memory_by_index and get_memory_len results.
const (
	ReadInvalidArgument int32 = -1
	ReadNotFound        int32 = -2
	ReadBufferTooSmall  int32 = -3
)

// RegistryExports lists the functions a registry artifact must export.
// get_memory_len is optional and therefore absent.
var RegistryExports = []string{
	ExportVersion,
	ExportSubmit,
	ExportCount,
	ExportReadByIndex,
	ExportPing,
	ExportAllocate,
	ExportDeallocate,
}

// AdderExports lists the functions an adder artifact must export.
var AdderExports = []string{
	ExportAdd,
}

// KnownExports is every function name a host may look up.
var KnownExports = []string{
	ExportVersion,
	ExportSubmit,
	ExportCount,
	ExportReadByIndex,
	ExportLenByIndex,
	ExportPing,
	ExportAllocate,
	ExportDeallocate,
	ExportAdd,
}

package ttwatch

// message type
const MT_OpenFileWrite = 0x02
const MT_DeleteFile = 0x03
const MT_WriteFileData = 0x04
const MT_GetFileSize = 0x05
const MT_OpenFileRead = 0x06
const MT_ReadFileDataRequest = 0x07
const MT_ReadFileDataResponse = 0x09
const MT_CloseFile = 0x0C
const MT_FormatWatch = 0x0E
const MT_ResetDevice = 0x10
const MT_FindFirstFile = 0x11
const MT_FindNextFile = 0x12
const MT_GetWatchTime = 0x14
const MT_ResetGPSProcessor = 0x1D
const MT_Unknown1F = 0x1F
const MT_GetProductID = 0x20
const MT_GetFirmwareVersion = 0x21
const MT_Unknown22 = 0x22
const MT_Unknown23 = 0x23
const MT_GetBLEVersion = 0x28
const MT_Unknown = 0xFF

var MT_names = map[int]string{0x02: "OpenFileWrite",
	0x03: "DeleteFile",
	0x04: "WriteFileData",
	0x05: "GetFileSize",
	0x06: "OpenFileRead",
	0x07: "ReadFileDataRequest",
	0x09: "ReadFileDataResponse",
	0x0C: "CloseFile",
	0x0E: "FormatWatch",
	0x10: "ResetDevice",
	0x11: "FindFirstFile",
	0x12: "FindNextFile",
	0x14: "GetWatchTime",
	0x1D: "ResetGPSProcessor",
	0x1F: "Unknown1F",
	0x20: "GetProductID",
	0x21: "GetFirmwareVersion",
	0x22: "Unknown22",
	0x23: "Unknown23",
	0x28: "GetBLEVersion",
	0xFF: "Unknown",
}

// packet direction
const DIR_RX = 0x01
const DIR_TX = 0x09
const DIR_Unknown = 0xFF

var DIR_names = map[int]string{0x01: "RX",
	0x09: "TX",
	0xFF: "Unknown",
}

// protocol error, reported by the watch inside response payloads
const PE_Success = 0x00
const PE_UnknownError = 0x01
const PE_FileNotFound = 0x02
const PE_AccessDenied = 0x03
const PE_InvalidHandle = 0x04

var PE_names = map[int]string{0x00: "Success",
	0x01: "UnknownError",
	0x02: "FileNotFound",
	0x03: "AccessDenied",
	0x04: "InvalidHandle",
}

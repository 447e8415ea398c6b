package server

// commandHandlers maps FTP commands to their handler functions.
// All handlers have the signature: func(s *session, arg string)
// Note: USER, PASS and QUIT are handled in execute, as they are valid
// before login.
var commandHandlers = map[string]func(*session, string){
	// File Management
	"PWD":  (*session).handlePWD,
	"CWD":  (*session).handleCWD,
	"CDUP": (*session).handleCDUP,
	"MKD":  (*session).handleMKD,
	"RMD":  (*session).handleRMD,
	"DELE": (*session).handleDELE,
	"RNFR": (*session).handleRNFR,
	"RNTO": (*session).handleRNTO,

	// File Transfer
	"LIST": (*session).handleLIST,
	"RETR": (*session).handleRETR,
	"STOR": (*session).handleSTOR,

	// Transfer Parameters
	"TYPE": (*session).handleTYPE,
	"MODE": (*session).handleMODE,
	"STRU": (*session).handleSTRU,
	"PORT": (*session).handlePORT,
	"PASV": (*session).handlePASV,

	// Information
	"SYST": (*session).handleSYST,
	"FEAT": (*session).handleFEAT,
	"OPTS": (*session).handleOPTS,
	"SIZE": (*session).handleSIZE,
	"MDTM": (*session).handleMDTM,
	"STAT": (*session).handleSTAT,
	"NOOP": (*session).handleNOOP,
	"ACCT": (*session).handleACCT,
}

func init() {
	// HELP reads the table itself, so it is registered separately.
	commandHandlers["HELP"] = (*session).handleHELP
}

// features lists the extensions advertised by FEAT.
var features = []string{
	"MDTM",
	"PASV",
	"SIZE",
	"UTF8",
}

package server

const (
	// telnetIAC is Interpret As Command
	telnetIAC = 0xFF
	// telnetWILL negotiation command
	telnetWILL = 0xFB
	// telnetWONT negotiation command
	telnetWONT = 0xFC
	// telnetDO negotiation command
	telnetDO = 0xFD
	// telnetDONT negotiation command
	telnetDONT = 0xFE
)

// stripTelnet removes Telnet command sequences from a command line.
// IAC IAC is kept as a single 0xFF byte, option negotiation (IAC WILL/WONT/
// DO/DONT opt) drops three bytes and any other IAC sequence drops two.
// A truncated sequence at the end of the line is dropped.
func stripTelnet(line []byte) []byte {
	out := make([]byte, 0, len(line))
	for i := 0; i < len(line); i++ {
		b := line[i]
		if b != telnetIAC {
			out = append(out, b)
			continue
		}
		if i+1 >= len(line) {
			break
		}
		i++
		switch line[i] {
		case telnetIAC:
			out = append(out, telnetIAC)
		case telnetWILL, telnetWONT, telnetDO, telnetDONT:
			i++
		}
	}
	return out
}

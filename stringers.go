package ipstack

import "strconv"

func (et EtherType) String() string {
	switch et {
	case EtherTypeIPv4:
		return "IPv4"
	case EtherTypeARP:
		return "ARP"
	case EtherTypeIPv6:
		return "IPv6"
	case EtherTypeVLAN:
		return "VLAN"
	default:
		if et.IsSize() {
			return "size(" + strconv.Itoa(int(et)) + ")"
		}
		return "EtherType(0x" + strconv.FormatUint(uint64(et), 16) + ")"
	}
}

func (p IPProto) String() string {
	switch p {
	case IPProtoICMP:
		return "ICMP"
	case IPProtoTCP:
		return "TCP"
	case IPProtoUDP:
		return "UDP"
	default:
		return "IPProto(" + strconv.Itoa(int(p)) + ")"
	}
}

func (op ARPOp) String() string {
	switch op {
	case ARPRequest:
		return "request"
	case ARPReply:
		return "reply"
	default:
		return "ARPOp(" + strconv.Itoa(int(op)) + ")"
	}
}

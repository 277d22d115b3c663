package pdb

// aminoMap: 20 种标准氨基酸三字母 → 单字母。
var aminoMap = map[string]byte{
	"ALA": 'A', "ARG": 'R', "ASN": 'N', "ASP": 'D', "CYS": 'C',
	"GLU": 'E', "GLN": 'Q', "GLY": 'G', "HIS": 'H', "ILE": 'I',
	"LEU": 'L', "LYS": 'K', "MET": 'M', "PHE": 'F', "PRO": 'P',
	"SER": 'S', "THR": 'T', "TRP": 'W', "TYR": 'Y', "VAL": 'V',
}

// OneLetter 返回三字母残基名对应的单字母代码；未知返回 (0,false)。
func OneLetter(resName string) (byte, bool) {
	b, ok := aminoMap[resName]
	return b, ok
}

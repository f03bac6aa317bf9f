package datasets

// bodsOperatorScope lists the operators whose bus open data publications are
// complete, so regional sources skip their services. Operators known to
// publish incomplete data are left out. Extend per deployment with a dataset
// override file.
var bodsOperatorScope = []string{
	"ACME", "ACYM", "ADER", "AFCL", "AKSS", "ALSC", "AMAN", "AMID",
	"AMKC", "AMNO", "AMSY", "AMTM", "ANEA", "ANUM", "ANWE", "ARBB",
	"ARDU", "ARHE", "ASES", "AVMT", "AWAN", "BANG", "BEES", "BMCS",
	"BNNT", "BNSC", "BRYL", "BULL", "BYCO", "BZCO", "CARL", "CBBH",
	"CBNL", "CHCB", "CLNB", "CNTY", "COAC", "COTS", "COTY", "CPLT",
	"CRDR", "CRYC", "CSVC", "CTCO", "CTPL", "DAGC", "DELA", "DIAM",
	"DJWA", "DPCR", "DTCO", "EBLY", "ENSB", "EUTX", "FALC", "FCHS",
	"FRDS", "FRMN", "FSRV", "FTZL", "GLAR", "GOCH", "GOGO", "GPLM",
	"GRYC", "GTRI", "GVTR", "GWIL", "GYLC", "HACO", "HATT", "HCTY",
	"HGCO", "HIPK", "HNTS", "HOPE", "HRBT", "IPSW", "IRVD", "JACK",
	"JOHS", "KBUS", "KENS", "KETR", "KJTR", "LAWS", "LCAC", "LIHO",
	"LMST", "LNNE", "LODG", "LTRV", "LUCK", "LYNX", "MARC", "MDCL",
	"NAKL", "NATX", "NCSL", "NCTP", "NDTR", "NEJH", "NOCT", "NRTL",
	"NXHH", "OBUS", "OTSS", "OURH", "PBLT", "PCCO", "PLNG", "POWB",
	"PRIC", "PULH", "RBTS", "RCHC", "RDRT", "REDE", "RELD", "RIDL",
	"RLNE", "ROOS", "ROSS", "RRTR", "RSLN", "SARG", "SELT", "SEWR",
	"SIMO", "SLVL", "SMMC", "SMST", "SNDR", "SPSV", "SSSN", "STNE",
	"STOT", "SULV", "SWAN", "SWCO", "TAWT", "TBTN", "TCVW", "TEXP",
	"TLYH", "TNXB", "TOTN", "UNOE", "VECT", "VIKG", "WBSV", "WGHC",
	"WHIP", "WNCT", "WNGS", "WRAY", "XLBL", "YEOS", "YRRB", "YTIG",
}

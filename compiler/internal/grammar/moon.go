package grammar

// moonRules is the Moon source grammar. Symbols starting with "@" are semantic actions run by the
// parser when they reach the top of the stack:
//   @node  leaf from the last matched token      @null  family boundary marker
//   @empty EMPTY leaf for an unbound dimension   @sign  unary node named after a sign token
// every other action builds one AST family, see ast.Actions.
const moonRules = `
START -> prog
prog -> @null progItems @prog
progItems -> progItem progItems | &epsilon
progItem -> structDecl | implDef | funcDef

structDecl -> struct id @node @null inheritsOpt @inherits opencubr @null members closecubr @structdecls @struct semi
inheritsOpt -> inherits id @node inheritsTail | &epsilon
inheritsTail -> comma id @node inheritsTail | &epsilon
members -> member members | &epsilon
member -> visibility @node memberDecl
visibility -> public | private
memberDecl -> funcSig @structfunchead semi
  | varKeyword id @node colon type @node @null arraySizes @dimlist @structvardecl semi
varKeyword -> let | var

implDef -> impl id @node opencubr @null implFuncs closecubr @funclist @impldef
implFuncs -> funcDef implFuncs | &epsilon

funcDef -> funcHead funcBody @funcdef
funcHead -> funcSig @funchead
funcSig -> func id @node openpar @null fParams closepar @fparams arrow returnType @node
fParams -> fParam fParamsTail | &epsilon
fParamsTail -> comma fParam fParamsTail | &epsilon
fParam -> id @node colon type @node @null arraySizes @dimlist @fparam
arraySizes -> arraySize arraySizes | &epsilon
arraySize -> opensqbr arrayDim closesqbr
arrayDim -> intlit @node | @empty
type -> integer | float | id
returnType -> type | void

funcBody -> opencubr @null bodyItems closecubr @funcbody
bodyItems -> bodyItem bodyItems | &epsilon
bodyItem -> varDecl | statement
varDecl -> varKeyword id @node colon type @node @null arraySizes @dimlist @vardecl semi

statement -> id @node idTail dotChain assignTail semi
  | if openpar expr closepar then statBlock else statBlock @if semi
  | while openpar expr closepar statBlock @while semi
  | read openpar variable closepar @read semi
  | write openpar expr closepar @write semi
  | return openpar expr closepar @return semi
assignTail -> assign expr @assignstat | &epsilon
statBlock -> @null statBlockBody @statblock
statBlockBody -> opencubr statements closecubr | statement | &epsilon
statements -> statement statements | &epsilon

variable -> id @node idTail dotChain
idTail -> openpar @null aParams closepar @aparams @funccall
  | @null indices @indice @variable
indices -> opensqbr arithExpr closesqbr indices | &epsilon
dotChain -> dot id @node idTail @dot dotChain | &epsilon
aParams -> expr aParamsTail | &epsilon
aParamsTail -> comma expr aParamsTail | &epsilon

expr -> arithExpr exprTail @expr
exprTail -> relOp @node arithExpr @relexpr | &epsilon
relOp -> eq | noteq | lt | gt | leq | geq
arithExpr -> term arithTail @arithexpr
arithTail -> addOp @node term @addop arithTail | &epsilon
addOp -> plus | minus | or
term -> factor termTail
termTail -> multOp @node factor @multop termTail | &epsilon
multOp -> mult | div | and
factor -> id @node idTail dotChain
  | intlit @node
  | floatlit @node
  | openpar arithExpr closepar
  | not factor @not
  | sign @node factor @sign
sign -> plus | minus
`

// MoonProductions returns the Moon grammar as a production list.
func MoonProductions() []Production {
	productions, err := ParseRules(moonRules)
	if err != nil {
		panic(err)
	}
	return productions
}

// Moon builds the LL(1) table of the Moon grammar.
func Moon() (*Table, error) {
	return Build(Start, MoonProductions())
}
